// Package timeline derives balances from the stored timeline. Balances are
// never persisted: balance[n] = startingBalance + sum(income[0..n] - expenses[0..n]).
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aretw0/tally/pkg/core"
)

// DefaultKey is the timeline key the web client stores its data under.
const DefaultKey = "timelineData"

// ErrNoTimeline is returned when the requested timeline key is absent.
var ErrNoTimeline = errors.New("timeline not found")

// Point is one projected month.
type Point struct {
	ID       string  `json:"id"`
	Year     int     `json:"year"`
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
	Balance  float64 `json:"balance"`
	IsLocked bool    `json:"isLocked"`
}

// Projection is the derived view of one timeline.
type Projection struct {
	Key             string  `json:"key"`
	StartingBalance float64 `json:"startingBalance"`
	Months          []Point `json:"months"`
	FinalBalance    float64 `json:"finalBalance"`
	LowestBalance   float64 `json:"lowestBalance"`
	LowestMonth     string  `json:"lowestMonth,omitempty"`
	NegativeMonths  int     `json:"negativeMonths"`

	final decimal.Decimal
}

// Final returns the exact closing balance.
func (p Projection) Final() decimal.Decimal {
	return p.final
}

// Decode converts a stored timeline value into TimelineData.
func Decode(value any) (core.TimelineData, error) {
	var data core.TimelineData
	raw, err := json.Marshal(value)
	if err != nil {
		return data, fmt.Errorf("%w: timeline: %v", core.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: timeline: %v", core.ErrValidation, err)
	}
	return data, nil
}

// Project computes running balances with decimal arithmetic, so long
// timelines do not drift by float rounding.
func Project(key string, data core.TimelineData) Projection {
	start := decimal.NewFromFloat(data.StartingBalance)
	balance := start
	lowest := start

	p := Projection{
		Key:             key,
		StartingBalance: data.StartingBalance,
		Months:          make([]Point, 0, len(data.Months)),
	}
	for _, m := range data.Months {
		income := decimal.NewFromFloat(m.Income)
		expenses := decimal.NewFromFloat(m.Expenses)
		net := income.Sub(expenses)
		balance = balance.Add(net)

		if balance.IsNegative() {
			p.NegativeMonths++
		}
		if balance.LessThan(lowest) {
			lowest = balance
			p.LowestMonth = m.ID
		}

		p.Months = append(p.Months, Point{
			ID:       m.ID,
			Year:     m.Year,
			Month:    m.Month,
			Income:   m.Income,
			Expenses: m.Expenses,
			Net:      net.InexactFloat64(),
			Balance:  balance.InexactFloat64(),
			IsLocked: m.IsLocked,
		})
	}

	p.final = balance
	p.FinalBalance = balance.InexactFloat64()
	p.LowestBalance = lowest.InexactFloat64()
	return p
}

// FromDocument projects the timeline stored under key.
func FromDocument(doc core.Document, key string) (Projection, error) {
	if key == "" {
		key = DefaultKey
	}
	value, ok := doc.Timeline[key]
	if !ok {
		return Projection{}, fmt.Errorf("%w: %q", ErrNoTimeline, key)
	}
	data, err := Decode(value)
	if err != nil {
		return Projection{}, err
	}
	return Project(key, data), nil
}
