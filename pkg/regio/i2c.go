//go:build linux

package regio

import (
	"fmt"
	"sync"

	"github.com/platinasystems/i2c"
)

// I2CBus exposes the byte-wide registers of an SMBus device as a Bus.
// Register offsets are the device's 8-bit command codes and only the low
// byte of each register is meaningful. Bus-level timeouts are enforced by
// the kernel adapter and surface as errors from Read and Write.
type I2CBus struct {
	mu      sync.Mutex
	index   int
	address int
}

// NewI2CBus returns a bus for the device at address on adapter index.
func NewI2CBus(index, address int) *I2CBus {
	return &I2CBus{index: index, address: address}
}

func (b *I2CBus) do(rw i2c.RW, reg uint8, data *i2c.SMBusData) error {
	var bus i2c.Bus

	if err := bus.Open(b.index); err != nil {
		return fmt.Errorf("i2c-%d: %w", b.index, err)
	}
	defer bus.Close()

	if err := bus.ForceSlaveAddress(b.address); err != nil {
		return fmt.Errorf("i2c-%d addr %#x: %w", b.index, b.address, err)
	}
	return bus.Do(rw, reg, i2c.ByteData, data)
}

func checkByteReg(offset uint32) error {
	if offset > 0xff {
		return fmt.Errorf("%w: %#x is not an 8-bit command", ErrOutOfBounds, offset)
	}
	return nil
}

// Read returns the register value.
func (b *I2CBus) Read(offset uint32) (uint32, error) {
	if err := checkByteReg(offset); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var data i2c.SMBusData
	if err := b.do(i2c.Read, uint8(offset), &data); err != nil {
		return 0, err
	}
	return uint32(data[0]), nil
}

// Write performs a read-modify-write of the register.
func (b *I2CBus) Write(offset, mask, value uint32) error {
	if err := checkByteReg(offset); err != nil {
		return err
	}
	if mask&^0xff != 0 {
		return fmt.Errorf("%w: mask %#x wider than 8 bits", ErrOutOfBounds, mask)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var data i2c.SMBusData
	if err := b.do(i2c.Read, uint8(offset), &data); err != nil {
		return err
	}
	data[0] = uint8((uint32(data[0]) &^ mask) | (value & mask))
	return b.do(i2c.Write, uint8(offset), &data)
}

// Compile-time interface satisfaction check.
var _ Bus = (*I2CBus)(nil)
