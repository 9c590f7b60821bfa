//go:build !linux

package main

import (
	"errors"

	"github.com/clkfabric/clktree/pkg/regio"
)

func openI2C(index, address int) (regio.Bus, error) {
	return nil, errors.New("i2c bus is only supported on linux")
}
