package fsrs

import (
	"math"
	"time"
)

// Params holds the parameters of the stability model.
// These are placeholder values and should be optimized later.
type Params struct {
	A                float64 // scales the overall memory increase
	B                float64 // difficulty exponent
	C                float64 // stability exponent
	D                float64 // retention effect scaler
	DesiredRetention float64 // desired retention rate (e.g., 0.9 for 90%)
	LapseStability   float64 // stability after a wrong answer, in days
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		A:                0.2,
		B:                0.5,
		C:                0.1,
		D:                4.0,
		DesiredRetention: 0.9,
		LapseStability:   1,
	}
}

// Memory is the review state of a topic.
type Memory struct {
	Stability  float64 // days until recall drops to the desired retention
	LastReview time.Time
}

// Next returns the memory state after a quiz answer given at now.
// difficulty is in [1, 10]; see DifficultyFrom.
func (p *Params) Next(m Memory, correct bool, difficulty float64, now time.Time) Memory {
	if !correct {
		return Memory{Stability: p.LapseStability, LastReview: now}
	}
	return Memory{
		Stability:  p.grow(m.Stability, difficulty),
		LastReview: now,
	}
}

// grow applies S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1)).
func (p *Params) grow(stability, difficulty float64) float64 {
	stability = math.Max(stability, 1)
	difficulty = math.Min(math.Max(difficulty, 1), 10)

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	multiplier := math.Exp(p.D*(1-p.DesiredRetention)) - 1

	return stability * (1 + factor*multiplier)
}

// DifficultyFrom maps a topic's answer history to a difficulty in [1, 10].
// A topic with no history is of middling difficulty.
func DifficultyFrom(correct, incorrect int) float64 {
	total := correct + incorrect
	if total == 0 {
		return 5
	}
	return 1 + 9*float64(incorrect)/float64(total)
}

// Due is the day the topic should next be revised.
func (m Memory) Due() time.Time {
	days := time.Duration(math.Round(m.Stability))
	return m.LastReview.Add(days * 24 * time.Hour)
}
