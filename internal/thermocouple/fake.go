package thermocouple

import (
	"context"
	"errors"
	"sync"
)

// Step is one scripted read result for FakeSensor.
type Step struct {
	Reading Reading
	Err     error
}

// FakeSensor returns scripted results per channel.
// When a script runs out the last step repeats.
type FakeSensor struct {
	mu      sync.Mutex
	scripts map[Channel][]Step
	index   map[Channel]int

	// Calls counts reads per channel.
	Calls map[Channel]int
}

// NewFakeSensor creates a FakeSensor with no scripts.
func NewFakeSensor() *FakeSensor {
	return &FakeSensor{
		scripts: make(map[Channel][]Step),
		index:   make(map[Channel]int),
		Calls:   make(map[Channel]int),
	}
}

// Script replaces the steps for ch and rewinds it.
func (f *FakeSensor) Script(ch Channel, steps ...Step) *FakeSensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[ch] = steps
	f.index[ch] = 0
	return f
}

// Set makes ch return a constant good reading.
func (f *FakeSensor) Set(ch Channel, probeC, internalC float64) *FakeSensor {
	return f.Script(ch, Step{Reading: Reading{ProbeC: probeC, InternalC: internalC}})
}

// Read returns the next scripted step for ch.
func (f *FakeSensor) Read(ctx context.Context, ch Channel) (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[ch]++

	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	steps := f.scripts[ch]
	if len(steps) == 0 {
		return Reading{}, errors.New("no steps scripted")
	}
	i := f.index[ch]
	if i < len(steps)-1 {
		f.index[ch] = i + 1
	}
	return steps[i].Reading, steps[i].Err
}
