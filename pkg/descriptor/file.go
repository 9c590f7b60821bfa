package descriptor

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed soc/*.yaml
var socFS embed.FS

// File is a parsed descriptor file.
type File struct {
	// SoC names the part the file describes.
	SoC         string `yaml:"soc"`
	Description string `yaml:"description,omitempty"`

	// Defs holds YAML anchors shared by the clock entries. It is not
	// interpreted.
	Defs yaml.Node `yaml:"defs,omitempty"`

	Clocks []Clock `yaml:"clocks"`

	// AssignedRates are applied in order once the tree is built.
	AssignedRates []AssignedRate `yaml:"assigned_rates,omitempty"`

	// Registers are reset values for a simulated register file.
	Registers map[uint32]uint32 `yaml:"registers,omitempty"`

	path string
}

// Clock describes one node.
type Clock struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Parents []string `yaml:"parents,omitempty"`

	// Mux lists the selector code of each parent. Omitted means identity.
	Mux []uint32 `yaml:"mux,omitempty"`

	Rate   Hz     `yaml:"rate,omitempty"`
	Input  *Range `yaml:"input,omitempty"`
	Output *Range `yaml:"output,omitempty"`

	Divisors *Divisors `yaml:"divisors,omitempty"`
	Layout   Layout    `yaml:"layout,omitempty"`
	Flags    []string  `yaml:"flags,omitempty"`

	ChangeableParent *int   `yaml:"changeable_parent,omitempty"`
	SafeDivisor      uint32 `yaml:"safe_divisor,omitempty"`

	Export *Export `yaml:"export,omitempty"`

	// Initial is used for controls that have no register field.
	Initial *Initial `yaml:"initial,omitempty"`
	Enabled bool     `yaml:"enabled,omitempty"`

	// Line is the source line of the entry.
	Line int `yaml:"-"`
}

var clockKeys = map[string]bool{
	"name": true, "kind": true, "parents": true, "mux": true, "rate": true,
	"input": true, "output": true, "divisors": true, "layout": true,
	"flags": true, "changeable_parent": true, "safe_divisor": true,
	"export": true, "initial": true, "enabled": true,
}

// UnmarshalYAML records the entry's line for error messages and rejects
// unknown keys.
func (c *Clock) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; !clockKeys[k.Value] {
				return fmt.Errorf("line %d: unknown clock key %q", k.Line, k.Value)
			}
		}
	}
	type plain Clock
	if err := n.Decode((*plain)(c)); err != nil {
		return err
	}
	c.Line = n.Line
	return nil
}

// Range is a frequency range. A range with only max is a ceiling.
type Range struct {
	Min Hz `yaml:"min,omitempty"`
	Max Hz `yaml:"max,omitempty"`
}

// Divisors selects one of the divisor table shapes.
type Divisors struct {
	// Linear is [min, max]; the field holds value-1.
	Linear []uint32 `yaml:"linear,omitempty"`

	// Indexed lists values by field code.
	Indexed []uint32 `yaml:"indexed,omitempty"`

	// PowerOfTwo is the number of 2^n codes; Div3 adds /3 at code 7.
	PowerOfTwo int  `yaml:"power_of_two,omitempty"`
	Div3       bool `yaml:"div3,omitempty"`
}

// Field is a register bit field.
type Field struct {
	Offset uint32 `yaml:"offset"`
	Shift  uint8  `yaml:"shift"`
	Width  uint8  `yaml:"width"`
}

// Layout names the register fields of a clock.
type Layout struct {
	Mux  *Field `yaml:"mux,omitempty"`
	Div  *Field `yaml:"div,omitempty"`
	Mul  *Field `yaml:"mul,omitempty"`
	Frac *Field `yaml:"frac,omitempty"`
	Gate *Field `yaml:"gate,omitempty"`
}

// Export is the (type, index) slot consumers use.
type Export struct {
	Type  string `yaml:"type"`
	Index uint32 `yaml:"index"`
}

// Initial is a setting for clocks without register fields.
type Initial struct {
	Parent int    `yaml:"parent,omitempty"`
	Div    uint32 `yaml:"div,omitempty"`
	Mul    uint32 `yaml:"mul,omitempty"`
	Frac   uint32 `yaml:"frac,omitempty"`
}

// AssignedRate is a boot-time rate request.
type AssignedRate struct {
	Clock string `yaml:"clock"`
	Rate  Hz     `yaml:"rate"`
}

// LoadError reports a problem in a descriptor file.
type LoadError struct {
	Path  string
	Line  int
	Clock string
	Err   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
	} else {
		b.WriteString("descriptor")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	if e.Clock != "" {
		fmt.Fprintf(&b, ": clock %q", e.Clock)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrNoClocks is returned for a file without clock entries.
var ErrNoClocks = errors.New("no clocks defined")

// Parse decodes a descriptor. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	return parse(bytes.NewReader(data), "")
}

// Load reads a descriptor file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, path)
}

// Builtin returns an embedded descriptor by SoC name, e.g. "sama7g5".
func Builtin(name string) (*File, error) {
	data, err := socFS.ReadFile("soc/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("soc %q not found: %w", name, err)
	}
	f, err := parse(bytes.NewReader(data), "soc/"+name+".yaml")
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Available returns the names of the embedded descriptors, sorted.
func Available() ([]string, error) {
	entries, err := socFS.ReadDir("soc")
	if err != nil {
		return nil, fmt.Errorf("reading soc directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open resolves a name to an embedded descriptor, or else treats it as a
// path.
func Open(nameOrPath string) (*File, error) {
	if _, err := socFS.Open("soc/" + nameOrPath + ".yaml"); err == nil {
		return Builtin(nameOrPath)
	}
	return Load(nameOrPath)
}

func parse(r io.Reader, path string) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	f := &File{path: path}
	if err := dec.Decode(f); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(f.Clocks) == 0 {
		return nil, &LoadError{Path: path, Err: ErrNoClocks}
	}
	return f, nil
}

// Path returns the file the descriptor was read from, if any.
func (f *File) Path() string {
	return f.path
}
