// Package persistence stores committed clock tree snapshots on disk.
//
// A snapshot survives a process restart so that a tree can be brought back
// to the rates it ran at before, provided the topology is unchanged. The
// file is versioned JSON; the topology check itself is done by
// clk.Controller.Restore.
package persistence
