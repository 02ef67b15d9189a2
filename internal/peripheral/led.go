package peripheral

import "sync"

// DefaultLEDPin is the on-board LED of the reference board.
const DefaultLEDPin = 8

// LED drives an active-low LED: level 0 lights it, level 1 turns it off.
type LED struct {
	pins Pins
	pin  int

	mu        sync.Mutex
	listeners []func(on bool)
}

// NewLED wraps pin of the given bank. The pin must already be an output.
func NewLED(pins Pins, pin int) *LED {
	return &LED{pins: pins, pin: pin}
}

// Pin returns the LED pin number.
func (l *LED) Pin() int {
	return l.pin
}

// On lights the LED.
func (l *LED) On() error {
	return l.set(true)
}

// Off turns the LED off.
func (l *LED) Off() error {
	return l.set(false)
}

// State reports whether the LED is lit.
func (l *LED) State() (bool, error) {
	level, err := l.pins.Level(l.pin)
	if err != nil {
		return false, err
	}
	return level == 0, nil
}

// OnChange registers a listener called after every successful change.
func (l *LED) OnChange(fn func(on bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *LED) set(on bool) error {
	level := 1
	if on {
		level = 0
	}
	if err := l.pins.SetLevel(l.pin, level); err != nil {
		return err
	}

	l.mu.Lock()
	listeners := make([]func(bool), len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(on)
	}
	return nil
}
