package types

import (
	"math"
	"time"
)

// WeightGoal is the single target the user is working towards.
type WeightGoal struct {
	TargetWeightKg float64    `json:"target_weight_kg"`
	StartWeightKg  float64    `json:"start_weight_kg"`
	StartDate      time.Time  `json:"start_date"`
	TargetDate     *time.Time `json:"target_date,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks that both weights are in range and the target date, if
// any, does not precede the start date.
func (g WeightGoal) Validate() error {
	if g.TargetWeightKg <= 0 || g.TargetWeightKg >= maxWeightKg {
		return ErrInvalidWeight
	}
	if g.StartWeightKg <= 0 || g.StartWeightKg >= maxWeightKg {
		return ErrInvalidWeight
	}
	if g.StartDate.IsZero() {
		return ErrInvalidTimestamp
	}
	if g.TargetDate != nil && g.TargetDate.Before(g.StartDate) {
		return ErrInvalidGoal
	}
	return nil
}

// GoalProgress describes how far the current weight is along the path from
// the goal's start weight to its target.
type GoalProgress struct {
	Goal        WeightGoal
	CurrentKg   float64
	RemainingKg float64 // Signed distance still to cover; zero or past target is 0.
	Percent     float64 // 0 to 100.
	Reached     bool
}

// Progress computes progress for the given current weight. A goal whose start
// equals its target is reached by definition.
func (g WeightGoal) Progress(currentKg float64) GoalProgress {
	p := GoalProgress{Goal: g, CurrentKg: currentKg}
	total := g.StartWeightKg - g.TargetWeightKg
	if total == 0 {
		p.Percent = 100
		p.Reached = true
		return p
	}
	done := g.StartWeightKg - currentKg
	p.Percent = math.Max(0, math.Min(100, done/total*100))
	remaining := currentKg - g.TargetWeightKg
	if total < 0 {
		// Gaining towards the target.
		remaining = -remaining
	}
	if remaining <= 0 {
		p.Reached = true
		remaining = 0
	}
	p.RemainingKg = remaining
	return p
}
