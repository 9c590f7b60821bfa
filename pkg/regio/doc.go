// Package regio is the register I/O boundary of the clock engine.
//
// The engine never touches hardware directly. It hands field writes to a Bus,
// which performs read-modify-write on 32-bit registers. A Bus that also
// implements Transactor can apply a group of writes atomically; for plain
// buses Apply falls back to sequential writes and restores every register it
// already changed when a later write fails.
//
// Implementations:
//   - MemBus: an in-memory register file for simulation and tests, with
//     fault injection and a write journal
//   - MMIOBus: memory-mapped registers through /dev/mem (or any file)
//   - I2CBus: byte-wide registers of an SMBus device (linux only)
//
// Mutual exclusion between writers of the same register is the bus's job;
// all implementations here serialize access internally.
package regio
