package thermocouple

import (
	"context"
	"sync"
	"time"
)

// DefaultReadBudget bounds a single bus transaction.
const DefaultReadBudget = 250 * time.Millisecond

// ReaderConfig configures the grace policy.
type ReaderConfig struct {
	GraceCount int           // consecutive failures tolerated; surfaced at GraceCount
	ReadBudget time.Duration // per-read deadline
	Channels   []Channel     // fitted channels; defaults to A only
}

// Sample is the outcome of reading one channel for one tick.
type Sample struct {
	Channel Channel
	Reading Reading
	Valid   bool   // at least one good read has happened
	Masked  bool   // this read failed and the last good reading was returned
	Fault   *Fault // non-nil once the grace count is exhausted
}

type channelState struct {
	last   Reading
	valid  bool
	errors int
}

// Reader applies the grace-count policy on top of a Sensor.
type Reader struct {
	sensor Sensor
	cfg    ReaderConfig

	mu    sync.Mutex
	state map[Channel]*channelState
}

// NewReader creates a reader. GraceCount < 1 is treated as 1 (no masking).
func NewReader(sensor Sensor, cfg ReaderConfig) *Reader {
	if cfg.GraceCount < 1 {
		cfg.GraceCount = 1
	}
	if cfg.ReadBudget <= 0 {
		cfg.ReadBudget = DefaultReadBudget
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []Channel{ChannelA}
	}
	st := make(map[Channel]*channelState, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		st[ch] = &channelState{}
	}
	return &Reader{sensor: sensor, cfg: cfg, state: st}
}

// Channels returns the fitted channels in read order.
func (r *Reader) Channels() []Channel {
	out := make([]Channel, len(r.cfg.Channels))
	copy(out, r.cfg.Channels)
	return out
}

// Has reports whether ch is fitted.
func (r *Reader) Has(ch Channel) bool {
	_, ok := r.state[ch]
	return ok
}

// Read samples one channel under the read budget.
func (r *Reader) Read(ctx context.Context, ch Channel) Sample {
	st, ok := r.state[ch]
	if !ok {
		return Sample{Channel: ch, Fault: &Fault{Channel: ch, Kind: FaultDisconnected, Err: ErrDisconnected}}
	}

	rctx, cancel := context.WithTimeout(ctx, r.cfg.ReadBudget)
	reading, err := r.sensor.Read(rctx, ch)
	if err == nil && rctx.Err() != nil {
		// result arrived after the budget; do not trust it
		err = rctx.Err()
	}
	cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		st.last = reading
		st.valid = true
		st.errors = 0
		return Sample{Channel: ch, Reading: reading, Valid: true}
	}

	st.errors++
	s := Sample{Channel: ch, Reading: st.last, Valid: st.valid, Masked: true}
	if st.errors >= r.cfg.GraceCount {
		s.Masked = false
		s.Fault = &Fault{Channel: ch, Kind: Classify(err), Count: st.errors, Err: err}
	}
	return s
}

// ReadAll samples every fitted channel in order.
func (r *Reader) ReadAll(ctx context.Context) []Sample {
	out := make([]Sample, 0, len(r.cfg.Channels))
	for _, ch := range r.cfg.Channels {
		out = append(out, r.Read(ctx, ch))
	}
	return out
}

// Counters returns consecutive failure counts indexed by channel.
func (r *Reader) Counters() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, NumChannels)
	for ch, st := range r.state {
		out[ch] = st.errors
	}
	return out
}

// ResetCounters clears failure counts, keeping the last good readings.
func (r *Reader) ResetCounters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.state {
		st.errors = 0
	}
}
