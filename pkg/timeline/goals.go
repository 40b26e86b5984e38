package timeline

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/aretw0/tally/pkg/core"
)

// GoalProgress summarizes one savings goal.
type GoalProgress struct {
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Remaining float64 `json:"remaining"`
	Percent   float64 `json:"percent"`
	Reached   bool    `json:"reached"`
}

// Goals decodes the goals store leniently: entries that do not look like a
// goal with a positive target are skipped.
func Goals(values []any) []GoalProgress {
	out := make([]GoalProgress, 0, len(values))
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var g struct {
			Name    string  `json:"name"`
			Target  float64 `json:"target"`
			Current float64 `json:"current"`
		}
		if err := json.Unmarshal(raw, &g); err != nil || g.Target <= 0 {
			continue
		}
		out = append(out, Progress(core.Goal{Name: g.Name, Target: g.Target, Current: g.Current}))
	}
	return out
}

// Progress computes how far a goal is from its target.
func Progress(g core.Goal) GoalProgress {
	target := decimal.NewFromFloat(g.Target)
	current := decimal.NewFromFloat(g.Current)
	if current.IsNegative() {
		current = decimal.Zero
	}

	remaining := target.Sub(current)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	percent := decimal.Zero
	if target.IsPositive() {
		percent = current.Div(target).Mul(decimal.NewFromInt(100)).Round(1)
	}

	return GoalProgress{
		Name:      g.Name,
		Target:    g.Target,
		Current:   current.InexactFloat64(),
		Remaining: remaining.InexactFloat64(),
		Percent:   percent.InexactFloat64(),
		Reached:   remaining.IsZero(),
	}
}
