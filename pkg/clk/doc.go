// Package clk models a system-on-chip clock tree and negotiates rate and
// parent changes on it.
//
// A Controller owns a Graph of Nodes registered in dependency order. Each
// node kind has a pure solver that turns a target rate into a concrete
// Setting (multiplexer input, multiplier, fraction, divisor). Applying a
// setting runs a transition:
//
//	Proposed -> PreNotified -> SafetyApplied -> Committed -> PostNotified -> Done
//
// Enabled descendants are offered every rate they would see, including the
// transient rates under safe divisors, and may veto before any register is
// written. The register groups of one transition are handed to the regio
// layer as a single transaction; if it fails, the touched registers are
// restored and the affected nodes are re-read from hardware on next use.
package clk
