package descriptor

import (
	"fmt"
	"math/big"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clkfabric/clktree/pkg/rate"
)

// Hz is a frequency in hertz that decodes from an integer or a string with
// a unit suffix.
type Hz uint64

var units = []struct {
	suffix string
	mult   uint64
}{
	{"ghz", rate.GHz},
	{"mhz", rate.MHz},
	{"khz", rate.KHz},
	{"hz", 1},
}

// ParseHz parses "625MHz", "32.768kHz", "24000000" or "24000000Hz". Decimal
// values must be a whole number of hertz.
func ParseHz(s string) (Hz, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty frequency")
	}
	mult := uint64(1)
	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			mult = u.mult
			break
		}
	}
	v = strings.ReplaceAll(v, "_", "")

	r, ok := new(big.Rat).SetString(v)
	if !ok || r.Sign() < 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(mult)))
	if !r.IsInt() {
		return 0, fmt.Errorf("frequency %q is not a whole number of hertz", s)
	}
	if !r.Num().IsUint64() {
		return 0, fmt.Errorf("frequency %q overflows", s)
	}
	return Hz(r.Num().Uint64()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Hz) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: frequency must be a scalar", n.Line)
	}
	v, err := ParseHz(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*h = v
	return nil
}

// MarshalYAML writes the shortest exact unit form.
func (h Hz) MarshalYAML() (any, error) {
	return h.String(), nil
}

func (h Hz) String() string {
	return rate.FormatHz(uint64(h))
}
