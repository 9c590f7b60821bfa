// Package descriptor loads SoC clock descriptions from YAML.
//
// A descriptor file lists every clock of a PMC in registration order (parents
// before children), the register fields that control it, the boot-time rates
// to assign once the tree is validated, and optional reset values for the
// simulated register file. Frequencies may be written as integers or as
// strings with a unit ("625MHz", "32.768kHz").
//
// The SAMA7G5 table ships embedded; see Builtin.
package descriptor
