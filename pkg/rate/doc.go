// Package rate provides the value types used to describe clock constraints.
//
// A Range is a closed frequency interval in Hz. A DivisorTable enumerates the
// divisors a divider stage can select together with the hardware code that
// selects each one. A MuxTable maps a logical parent index to the selector
// code a multiplexer expects for it.
//
// Everything here is pure: no state, no I/O. The only failures are
// configuration errors such as an empty table, which are reported when a
// clock tree is loaded.
package rate
