// Package simulator models a kiln's thermal response so the controller can
// run without hardware. A Kiln is both the thermocouple sensor and the relay
// output of the simulated plant.
package simulator

import (
	"context"
	"sync"
	"time"

	"kiln_controller/internal/thermocouple"
)

// ----------- Simulation constants -----------
const (
	AmbientC        = 25.0   // ambient temperature °C
	HeatRateCPerSec = 0.5    // °C per second with the relay on
	LossPerSec      = 0.0004 // fraction of (T - ambient) lost per second
	HousingFraction = 0.04   // housing rise as a fraction of the kiln rise
	JunctionRise    = 0.01   // cold-junction rise as a fraction of the kiln rise
)

// Params tunes the thermal model. Zero fields take the package defaults.
type Params struct {
	AmbientC        float64
	HeatRateCPerSec float64
	LossPerSec      float64
	HousingFraction float64
}

func (p Params) withDefaults() Params {
	if p.AmbientC == 0 {
		p.AmbientC = AmbientC
	}
	if p.HeatRateCPerSec == 0 {
		p.HeatRateCPerSec = HeatRateCPerSec
	}
	if p.LossPerSec == 0 {
		p.LossPerSec = LossPerSec
	}
	if p.HousingFraction == 0 {
		p.HousingFraction = HousingFraction
	}
	return p
}

type injected struct {
	err   error
	count int // remaining failing reads; < 0 means until cleared
}

// Kiln is a lumped thermal model advanced lazily on every read or relay write.
type Kiln struct {
	p   Params
	now func() time.Time

	mu      sync.Mutex
	tempC   float64
	relayOn bool
	last    time.Time
	faults  map[thermocouple.Channel]*injected
}

// NewKiln creates a kiln at ambient temperature. now defaults to time.Now.
func NewKiln(p Params, now func() time.Time) *Kiln {
	if now == nil {
		now = time.Now
	}
	p = p.withDefaults()
	return &Kiln{
		p:      p,
		now:    now,
		tempC:  p.AmbientC,
		last:   now(),
		faults: make(map[thermocouple.Channel]*injected),
	}
}

// advance integrates the model up to the current time. Caller holds mu.
func (k *Kiln) advance() {
	t := k.now()
	elapsed := t.Sub(k.last).Seconds()
	if elapsed <= 0 {
		return
	}
	k.last = t
	k.tempC = step(k.p, k.tempC, k.relayOn, elapsed)
}

// step integrates in one-second slices so long gaps stay stable.
func step(p Params, tempC float64, heating bool, elapsed float64) float64 {
	for elapsed > 0 {
		dt := elapsed
		if dt > 1 {
			dt = 1
		}
		if heating {
			tempC += p.HeatRateCPerSec * dt
		}
		tempC -= p.LossPerSec * (tempC - p.AmbientC) * dt
		if tempC < p.AmbientC {
			tempC = p.AmbientC
		}
		elapsed -= dt
	}
	return tempC
}

// Read implements thermocouple.Sensor. Channel A is the kiln probe and
// channel B the housing probe.
func (k *Kiln) Read(ctx context.Context, ch thermocouple.Channel) (thermocouple.Reading, error) {
	if err := ctx.Err(); err != nil {
		return thermocouple.Reading{}, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()

	if f, ok := k.faults[ch]; ok {
		if f.count > 0 {
			f.count--
			if f.count == 0 {
				delete(k.faults, ch)
			}
		}
		return thermocouple.Reading{}, f.err
	}

	rise := k.tempC - k.p.AmbientC
	housing := k.p.AmbientC + k.p.HousingFraction*rise
	junction := k.p.AmbientC + JunctionRise*rise
	switch ch {
	case thermocouple.ChannelB:
		return thermocouple.Reading{ProbeC: housing, InternalC: junction}, nil
	default:
		return thermocouple.Reading{ProbeC: k.tempC, InternalC: junction}, nil
	}
}

// InjectFault makes the next n reads of ch fail with err; n < 0 fails until
// ClearFault.
func (k *Kiln) InjectFault(ch thermocouple.Channel, err error, n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if n == 0 {
		delete(k.faults, ch)
		return
	}
	k.faults[ch] = &injected{err: err, count: n}
}

func (k *Kiln) ClearFault(ch thermocouple.Channel) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.faults, ch)
}

// SetTemp forces the kiln temperature.
func (k *Kiln) SetTemp(c float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()
	k.tempC = c
}

// Temp returns the current kiln temperature.
func (k *Kiln) Temp() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()
	return k.tempC
}

// RelayOn reports the simulated relay state.
func (k *Kiln) RelayOn() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.relayOn
}

// Set implements gpio.Output for the heating relay.
func (k *Kiln) Set(on bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()
	k.relayOn = on
	return nil
}

// Close implements gpio.Output.
func (k *Kiln) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.advance()
	k.relayOn = false
	return nil
}
