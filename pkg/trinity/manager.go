package trinity

import (
	"math"
	"sync"
)

// Metrics is a clamped snapshot of the five pillars plus the weighted score.
type Metrics struct {
	Truth    float64 `json:"truth"`
	Goodness float64 `json:"goodness"`
	Beauty   float64 `json:"beauty"`
	Serenity float64 `json:"serenity"`
	Eternity float64 `json:"eternity"`

	// Score is the weighted sum, in [0,1].
	Score float64 `json:"trinity_score"`
}

// Value returns the channel value for p.
func (m Metrics) Value(p Pillar) float64 {
	switch p {
	case Truth:
		return m.Truth
	case Goodness:
		return m.Goodness
	case Beauty:
		return m.Beauty
	case Serenity:
		return m.Serenity
	case Eternity:
		return m.Eternity
	}
	return 0
}

// Score100 returns the weighted score on the 0..100 scale used by the gate.
func (m Metrics) Score100() float64 {
	return m.Score * 100
}

// Gap is the spread between the strongest and weakest pillar.
func (m Metrics) Gap() float64 {
	lo, hi := 1.0, 0.0
	for _, p := range Pillars {
		v := m.Value(p)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// Compute builds Metrics from raw channel values, clamping each into [0,1]
// and weighting them with w.
func Compute(values map[Pillar]float64, w map[Pillar]float64) Metrics {
	m := Metrics{
		Truth:    clamp(values[Truth]),
		Goodness: clamp(values[Goodness]),
		Beauty:   clamp(values[Beauty]),
		Serenity: clamp(values[Serenity]),
		Eternity: clamp(values[Eternity]),
	}
	for _, p := range Pillars {
		m.Score += m.Value(p) * w[p]
	}
	return m
}

// Manager accumulates trigger deltas on top of a base of 1.0 per channel.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	weights map[Pillar]float64
	deltas  Delta
	applied []Trigger
}

// NewManager creates a Manager using the SSOT weights.
func NewManager() *Manager {
	return &Manager{weights: DefaultWeights()}
}

// NewManagerWithWeights creates a Manager with custom weights.
// Callers are expected to have run ValidateWeights.
func NewManagerWithWeights(w map[Pillar]float64) *Manager {
	copied := make(map[Pillar]float64, len(w))
	for k, v := range w {
		copied[k] = v
	}
	return &Manager{weights: copied}
}

// ApplyTrigger adds the delta for t. Unknown triggers are ignored and
// reported as false.
func (m *Manager) ApplyTrigger(t Trigger) bool {
	d, ok := Lookup(t)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas.Truth += d.Truth
	m.deltas.Goodness += d.Goodness - d.Risk
	m.deltas.Beauty += d.Beauty
	m.deltas.Serenity += d.Serenity
	m.deltas.Eternity += d.Eternity
	m.applied = append(m.applied, t)
	return true
}

// ApplyTriggerName is ApplyTrigger for a raw name.
func (m *Manager) ApplyTriggerName(name string) bool {
	return m.ApplyTrigger(Trigger(name))
}

// CurrentMetrics returns the clamped channels and the weighted score.
func (m *Manager) CurrentMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Compute(map[Pillar]float64{
		Truth:    1.0 + m.deltas.Truth/100,
		Goodness: 1.0 + m.deltas.Goodness/100,
		Beauty:   1.0 + m.deltas.Beauty/100,
		Serenity: 1.0 + m.deltas.Serenity/100,
		Eternity: 1.0 + m.deltas.Eternity/100,
	}, m.weights)
}

// Applied returns the triggers accepted so far, in order.
func (m *Manager) Applied() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trigger, len(m.applied))
	copy(out, m.applied)
	return out
}

// Reset clears all accumulated deltas.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = Delta{}
	m.applied = nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
