// Package peripheral provides the digital output collaborator used during
// bring-up: a simulated pin bank and an active-low LED on top of it.
package peripheral

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPeripheral classifies every failure reported by this package.
var ErrPeripheral = errors.New("peripheral error")

// Pins is the digital output interface bring-up needs.
type Pins interface {
	// ConfigureOutput switches every pin set in mask to push-pull output
	// with pulls and interrupts disabled.
	ConfigureOutput(mask uint64) error
	// SetLevel drives an output pin low (0) or high (1).
	SetLevel(pin int, level int) error
	// Level reads back the driven level of an output pin.
	Level(pin int) (int, error)
}

// PinMask returns the bit mask for the given pins.
func PinMask(pins ...int) uint64 {
	var mask uint64
	for _, p := range pins {
		if p >= 0 && p < 64 {
			mask |= 1 << uint(p)
		}
	}
	return mask
}

// Bank is an in-memory pin bank. The zero value is not usable; use NewBank.
type Bank struct {
	mu      sync.Mutex
	count   int
	outputs uint64
	levels  uint64

	// FailPins makes ConfigureOutput and SetLevel fail for the masked pins.
	FailPins uint64
}

// NewBank creates a bank with count pins, all configured as inputs.
func NewBank(count int) *Bank {
	if count <= 0 || count > 64 {
		count = 64
	}
	return &Bank{count: count}
}

// ConfigureOutput implements Pins.
func (b *Bank) ConfigureOutput(mask uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if mask == 0 {
		return fmt.Errorf("empty pin mask: %w", ErrPeripheral)
	}
	if b.count < 64 && mask>>uint(b.count) != 0 {
		return fmt.Errorf("pin mask 0x%x exceeds %d pins: %w", mask, b.count, ErrPeripheral)
	}
	if mask&b.FailPins != 0 {
		return fmt.Errorf("configure pins 0x%x: %w", mask&b.FailPins, ErrPeripheral)
	}
	b.outputs |= mask
	return nil
}

// SetLevel implements Pins.
func (b *Bank) SetLevel(pin int, level int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bit, err := b.outputBit(pin)
	if err != nil {
		return err
	}
	if bit&b.FailPins != 0 {
		return fmt.Errorf("set level on pin %d: %w", pin, ErrPeripheral)
	}
	if level != 0 {
		b.levels |= bit
	} else {
		b.levels &^= bit
	}
	return nil
}

// Level implements Pins.
func (b *Bank) Level(pin int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bit, err := b.outputBit(pin)
	if err != nil {
		return 0, err
	}
	if b.levels&bit != 0 {
		return 1, nil
	}
	return 0, nil
}

// Reset returns the masked pins to inputs and clears their levels.
func (b *Bank) Reset(mask uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.outputs &^= mask
	b.levels &^= mask
	return nil
}

// Outputs returns the mask of pins currently configured as outputs.
func (b *Bank) Outputs() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs
}

func (b *Bank) outputBit(pin int) (uint64, error) {
	if pin < 0 || pin >= b.count {
		return 0, fmt.Errorf("pin %d out of range: %w", pin, ErrPeripheral)
	}
	bit := uint64(1) << uint(pin)
	if b.outputs&bit == 0 {
		return 0, fmt.Errorf("pin %d is not an output: %w", pin, ErrPeripheral)
	}
	return bit, nil
}
