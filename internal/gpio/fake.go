package gpio

import "sync"

// FakeOutput records every state written to it.
type FakeOutput struct {
	mu sync.Mutex

	// Writes holds every value passed to Set, in order.
	Writes []bool

	// SetError, if set, is returned by Set without recording.
	SetError error

	Closed bool
	Closes int
}

func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// On reports the last written state; false before any write.
func (f *FakeOutput) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return false
	}
	return f.Writes[len(f.Writes)-1]
}

func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, false)
	f.Closed = true
	f.Closes++
	return nil
}
