package scheduler

import (
	"math/rand"
	"time"
)

// errorSampler gates PollError emission by a sample rate and a hard
// per-second cap per venue.
type errorSampler struct {
	rate      float64
	capPerSec int

	windowStart time.Time
	windowCount int
}

func newErrorSampler(rate float64, capPerSec int) *errorSampler {
	if capPerSec < 1 {
		capPerSec = 1
	}
	return &errorSampler{rate: rate, capPerSec: capPerSec}
}

// allow reports whether an error occurring at now should be written.
func (s *errorSampler) allow(now time.Time) bool {
	if now.Sub(s.windowStart) >= time.Second {
		s.windowStart = now
		s.windowCount = 0
	}
	if s.windowCount >= s.capPerSec {
		return false
	}
	if s.rate < 1.0 && rand.Float64() >= s.rate {
		return false
	}
	s.windowCount++
	return true
}
