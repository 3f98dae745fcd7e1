// Package interject decides when the bot speaks up without being asked.
//
// A plain per-message coin flip clusters badly: long silences, then three
// interjections in five minutes. Instead each channel accumulates pressure
// with every message it sees, and the firing probability rises with that
// pressure. Firing drains the pressure, so gaps between interjections come
// out more even than a memoryless draw while staying unpredictable.
package interject

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

type Options struct {
	// Step is the pressure added per observed message. Use StepForMeanGap
	// to aim at an average gap in messages.
	Step float64
	// MinGap suppresses firing while the last interjection is this fresh.
	// Pressure still accumulates while suppressed.
	MinGap time.Duration
	// Residual is the fraction of pressure kept after a firing.
	Residual float64
}

// StepForMeanGap converts a target mean gap (in messages) into a pressure
// step. With firing probability 1-exp(-p) the expected gap works out to
// roughly sqrt(pi/(2*step)).
func StepForMeanGap(mean float64) float64 {
	if mean <= 1 {
		mean = 1
	}
	return math.Pi / (2 * mean * mean)
}

type state struct {
	pressure float64
	lastFire time.Time
	force    bool
}

type Scheduler struct {
	mu    sync.Mutex
	opts  Options
	chans map[string]*state

	// injection points for deterministic tests
	randFloat func() float64
	now       func() time.Time
}

func New(opts Options) *Scheduler {
	if opts.Step <= 0 {
		opts.Step = StepForMeanGap(50)
	}
	if opts.Residual < 0 || opts.Residual >= 1 {
		opts.Residual = 0.15
	}
	return &Scheduler{
		opts:      opts,
		chans:     make(map[string]*state),
		randFloat: rand.Float64,
		now:       time.Now,
	}
}

func (s *Scheduler) channelState(channel string) *state {
	st, ok := s.chans[channel]
	if !ok {
		st = &state{}
		s.chans[channel] = st
	}
	return st
}

// Evaluate is called once per inbound channel message that did not already
// trigger a response by other means. It reports whether the bot should
// interject now. Private messages never fire and leave all state untouched.
func (s *Scheduler) Evaluate(channel string, private bool) bool {
	if private {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.channelState(channel)
	now := s.now()

	if st.force {
		st.force = false
		s.fire(st, now)
		return true
	}

	st.pressure += s.opts.Step

	if !st.lastFire.IsZero() && now.Sub(st.lastFire) < s.opts.MinGap {
		return false
	}
	if s.randFloat() < 1-math.Exp(-st.pressure) {
		s.fire(st, now)
		return true
	}
	return false
}

func (s *Scheduler) fire(st *state, now time.Time) {
	st.pressure *= s.opts.Residual
	st.lastFire = now
}

// ForceNext makes the next evaluation for the channel fire unconditionally.
// The flag is consumed by that evaluation and never lingers.
func (s *Scheduler) ForceNext(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelState(channel).force = true
}

// Forget drops the per-channel state, for when the bot parts a channel.
func (s *Scheduler) Forget(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chans, channel)
}
