package descriptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clkfabric/clktree/pkg/clk"
	"github.com/clkfabric/clktree/pkg/rate"
)

func bootSAMA7G5(t *testing.T) *clk.Controller {
	t.Helper()
	f, err := Builtin("sama7g5")
	require.NoError(t, err)
	c, err := f.Boot(context.Background(), nil, clk.Config{})
	require.NoError(t, err)
	return c
}

func rateOf(t *testing.T, c *clk.Controller, name string) uint64 {
	t.Helper()
	n, err := c.Lookup(name)
	require.NoError(t, err)
	r, err := c.GetRate(n)
	require.NoError(t, err)
	return r
}

func TestAvailable(t *testing.T) {
	names, err := Available()
	require.NoError(t, err)
	assert.Contains(t, names, "sama7g5")

	_, err = Builtin("sama5d2")
	assert.Error(t, err)
}

func TestSAMA7G5Boot(t *testing.T) {
	c := bootSAMA7G5(t)
	assert.Len(t, c.Nodes(), 161)

	assert.Equal(t, 24*rate.MHz, rateOf(t, c, "mainck"))
	assert.Equal(t, 792*rate.MHz, rateOf(t, c, "cpupll_divpmcck"))
	assert.Equal(t, 198*rate.MHz, rateOf(t, c, "mck0"))
	assert.Equal(t, 150*rate.MHz, rateOf(t, c, "mck1"))
	assert.Equal(t, 768*rate.MHz, rateOf(t, c, "audiopll_fracck"))
	assert.Equal(t, 96*rate.MHz, rateOf(t, c, "audiopll_diviock"))

	// assigned at boot
	assert.Equal(t, uint64(625_000_001), rateOf(t, c, "ethpll_fracck"))
	assert.Equal(t, uint64(625_000_001), rateOf(t, c, "ethpll_divpmcck"))
}

func TestSAMA7G5Exports(t *testing.T) {
	c := bootSAMA7G5(t)

	tests := []struct {
		typ   clk.ExportType
		index uint32
		name  string
	}{
		{clk.ExportCore, 1, "mck0"},
		{clk.ExportCore, 3, "mainck"},
		{clk.ExportCore, 10, "fclk"},
		{clk.ExportCore, 12, "ethpll_divpmcck"},
		{clk.ExportCore, 15, "mck3"},
		{clk.ExportSystem, 8, "pck0"},
		{clk.ExportPeripheral, 80, "sdmmc0_clk"},
		{clk.ExportGCK, 80, "sdmmc0_gclk"},
		{clk.ExportProgrammable, 7, "prog7"},
	}
	for _, tt := range tests {
		n, err := c.ByExport(tt.typ, tt.index)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.name, n.Name())
	}
}

func TestSAMA7G5CPUScaling(t *testing.T) {
	c := bootSAMA7G5(t)
	pll, err := c.Lookup("cpupll_fracck")
	require.NoError(t, err)
	mck0, err := c.Lookup("mck0")
	require.NoError(t, err)

	var seen []uint64
	c.Subscribe(mck0, clk.NotifierFuncs{Pre: func(rc clk.RateChange) error {
		seen = rc.Rates()
		return nil
	}})

	got, err := c.SetRate(context.Background(), pll, 600*rate.MHz)
	require.NoError(t, err)
	assert.Equal(t, 600*rate.MHz, got)

	// cpupll_divpmcck sits on /15 while the PLL moves
	assert.Equal(t, []uint64{13_200_000, 10 * rate.MHz, 150 * rate.MHz}, seen)
	assert.Equal(t, 150*rate.MHz, rateOf(t, c, "mck0"))

	// past mck0's ceiling
	_, err = c.SetRate(context.Background(), pll, 1000*rate.MHz)
	assert.ErrorIs(t, err, clk.ErrVetoed)
	assert.Equal(t, 600*rate.MHz, rateOf(t, c, "cpupll_fracck"))
}

func TestSAMA7G5Protections(t *testing.T) {
	c := bootSAMA7G5(t)
	ctx := context.Background()

	mck0, err := c.Lookup("mck0")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Disable(ctx, mck0), clk.ErrCritical)

	sys, err := c.Lookup("syspll_fracck")
	require.NoError(t, err)
	_, err = c.SetRate(ctx, sys, 800*rate.MHz)
	assert.ErrorIs(t, err, clk.ErrGateRequired)
}

func TestSAMA7G5GeneratedClockRetunesBaudPLL(t *testing.T) {
	c := bootSAMA7G5(t)
	gck, err := c.Lookup("sdmmc0_gclk")
	require.NoError(t, err)

	got, err := c.SetRate(context.Background(), gck, 52*rate.MHz)
	require.NoError(t, err)
	assert.Equal(t, 52*rate.MHz, got)
	assert.Equal(t, "baudpll_divpmcck", c.Parent(gck).Name())
	assert.Equal(t, 156*rate.MHz, rateOf(t, c, "baudpll_fracck"))

	// the syspll consumers are untouched
	assert.Equal(t, 150*rate.MHz, rateOf(t, c, "mck1"))
}
