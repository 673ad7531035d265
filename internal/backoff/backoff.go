package backoff

import (
	"math"
	"math/rand"
	"time"
)

// State is the per-instrument backoff entry.
type State struct {
	NextEligibleAt     time.Time
	ConsecutiveFailures int
}

// Eligible reports whether the instrument may be dispatched at now.
func (s State) Eligible(now time.Time) bool {
	return !now.Before(s.NextEligibleAt)
}

// Params holds the tunables from config.BackoffConfig.
type Params struct {
	Base       time.Duration
	Cap        time.Duration
	JitterFrac float64
}

// Tracker is the per-venue map of instrument key to backoff State. It is
// owned by exactly one scheduler goroutine and never accessed concurrently;
// all per-venue mutation is single-threaded.
type Tracker struct {
	params Params
	states map[string]State
}

// NewTracker returns an empty Tracker using params for every delay
// computation.
func NewTracker(params Params) *Tracker {
	return &Tracker{params: params, states: make(map[string]State)}
}

// Eligible reports whether key may be dispatched at now. A key with no
// recorded State is always eligible.
func (t *Tracker) Eligible(key string, now time.Time) bool {
	st, ok := t.states[key]
	if !ok {
		return true
	}
	return st.Eligible(now)
}

// RecordSuccess clears key's backoff state, equivalent to consecutive_failures=0.
func (t *Tracker) RecordSuccess(key string) {
	delete(t.states, key)
}

// Expedite clears key's backoff deadline without touching its consecutive
// failure count, making key immediately eligible for dispatch. Used when an
// out-of-band signal (a venue push-invalidation hint) suggests fresher data
// is available sooner than the computed backoff delay would otherwise allow.
func (t *Tracker) Expedite(key string) {
	st, ok := t.states[key]
	if !ok {
		return
	}
	st.NextEligibleAt = time.Time{}
	t.states[key] = st
}

// RecordFailure increments key's consecutive failure count and recomputes
// its next eligible deadline:
//
//	delay = min(base * 2^(n-1), cap) * uniform(1-jitter_frac, 1+jitter_frac)
//
// where n is the post-increment consecutive failure count.
func (t *Tracker) RecordFailure(key string, now time.Time) State {
	st := t.states[key]
	st.ConsecutiveFailures++

	delay := t.delay(st.ConsecutiveFailures)
	st.NextEligibleAt = now.Add(delay)
	t.states[key] = st
	return st
}

func (t *Tracker) delay(n int) time.Duration {
	base := float64(t.params.Base)
	ceiling := float64(t.params.Cap)

	raw := base * math.Pow(2, float64(n-1))
	if raw > ceiling {
		raw = ceiling
	}

	jitter := t.params.JitterFrac
	if jitter > 0 {
		factor := 1 - jitter + rand.Float64()*2*jitter
		raw *= factor
	}
	return time.Duration(raw)
}

// GC removes backoff state for any instrument key not present in active.
// Called once per tick after eligibility filtering, tying BackoffState
// lifecycle to ActiveSet membership.
func (t *Tracker) GC(active map[string]struct{}) {
	for key := range t.states {
		if _, ok := active[key]; !ok {
			delete(t.states, key)
		}
	}
}

// Len reports the number of instruments currently carrying backoff state.
func (t *Tracker) Len() int {
	return len(t.states)
}
