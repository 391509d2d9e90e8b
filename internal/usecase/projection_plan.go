package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/iho/goconsolidation/internal/domain"
)

// LegAction says whether a leg adds or removes an entry's contribution.
type LegAction string

const (
	LegApply  LegAction = "apply"
	LegRevert LegAction = "revert"
)

// LegStatus is the state of one leg within a projection attempt.
type LegStatus string

const (
	LegPending        LegStatus = "pending"
	LegApplied        LegStatus = "applied"
	LegSkippedMissing LegStatus = "skipped_missing"
	LegFailed         LegStatus = "failed"
)

// Leg is one delta against one day.
type Leg struct {
	Err        error
	Action     LegAction
	Status     LegStatus
	Adjustment domain.Adjustment
}

// ProjectionPlan is the unit of work derived from one event. Legs run in order
// and their writes commit together or not at all.
type ProjectionPlan struct {
	Legs []*Leg

	touched map[time.Time]*domain.DailyBalance
	order   []time.Time
}

// balanceLoader reads the current aggregate for a day inside the attempt's
// transaction. It returns domain.ErrDailyBalanceNotFound when absent.
type balanceLoader func(date time.Time) (*domain.DailyBalance, error)

func newPlan(legs ...*Leg) *ProjectionPlan {
	return &ProjectionPlan{Legs: legs}
}

func applyLeg(a domain.Adjustment) *Leg {
	return &Leg{Action: LegApply, Adjustment: a, Status: LegPending}
}

func revertLeg(a domain.Adjustment) *Leg {
	return &Leg{Action: LegRevert, Adjustment: a, Status: LegPending}
}

// PlanRegistered adds the new entry to its day.
func PlanRegistered(e domain.EntryRegistered) *ProjectionPlan {
	return newPlan(applyLeg(e.Contribution()))
}

// PlanUpdated reverts the before snapshot then applies the after snapshot.
// The plan is empty when the edit does not change a valid date, amount or kind;
// invalid snapshots always produce legs so Validate can reject them.
func PlanUpdated(e domain.EntryUpdated) *ProjectionPlan {
	before, after := e.Before.Contribution(), e.After.Contribution()
	if e.Before.SameEconomics(e.After) && before.Validate() == nil && after.Validate() == nil {
		return newPlan()
	}
	return newPlan(revertLeg(before), applyLeg(after))
}

// PlanDeleted removes the entry from its day.
func PlanDeleted(e domain.EntryDeleted) *ProjectionPlan {
	return newPlan(revertLeg(e.Contribution()))
}

// Empty reports whether the plan has nothing to do.
func (p *ProjectionPlan) Empty() bool {
	return len(p.Legs) == 0
}

// Validate checks every leg against the event contract. Legs dated after the
// calendar day of now are rejected.
func (p *ProjectionPlan) Validate(now time.Time) error {
	for i, leg := range p.Legs {
		if err := leg.Adjustment.ValidateAt(now); err != nil {
			return fmt.Errorf("%s leg %d: %w", leg.Action, i, err)
		}
	}
	return nil
}

// Touched returns the aggregates modified by the attempt, in first-touch order.
func (p *ProjectionPlan) Touched() []*domain.DailyBalance {
	out := make([]*domain.DailyBalance, 0, len(p.order))
	for _, d := range p.order {
		out = append(out, p.touched[d])
	}
	return out
}

// Dates returns every day the plan refers to, touched or skipped.
func (p *ProjectionPlan) Dates() []time.Time {
	seen := make(map[time.Time]bool, len(p.Legs))
	var dates []time.Time
	for _, leg := range p.Legs {
		if !seen[leg.Adjustment.Date] {
			seen[leg.Adjustment.Date] = true
			dates = append(dates, leg.Adjustment.Date)
		}
	}
	return dates
}

// Anomalies returns one error per revert leg whose day was missing.
func (p *ProjectionPlan) Anomalies() []error {
	var out []error
	for _, leg := range p.Legs {
		if leg.Status == LegSkippedMissing {
			out = append(out, leg.Err)
		}
	}
	return out
}

// reset prepares the plan for a fresh attempt.
func (p *ProjectionPlan) reset() {
	p.touched = make(map[time.Time]*domain.DailyBalance, len(p.Legs))
	p.order = p.order[:0]
	for _, leg := range p.Legs {
		leg.Status = LegPending
		leg.Err = nil
	}
}

// execute runs every leg against the loaded aggregates. Legs on the same day
// share one aggregate so both deltas land in a single write.
func (p *ProjectionPlan) execute(load balanceLoader, now time.Time) error {
	if p.touched == nil {
		p.reset()
	}

	for _, leg := range p.Legs {
		date := leg.Adjustment.Date

		balance, ok := p.touched[date]
		if !ok {
			loaded, err := load(date)
			switch {
			case err == nil:
				balance = loaded
			case errors.Is(err, domain.ErrDailyBalanceNotFound):
				if leg.Action == LegRevert {
					leg.Status = LegSkippedMissing
					leg.Err = fmt.Errorf("%w: %s", domain.ErrMissingAggregate, date.Format(domain.DateLayout))
					continue
				}
				balance = domain.NewDailyBalance(date, now)
			default:
				leg.Status = LegFailed
				leg.Err = err
				return err
			}
		}

		if err := balance.ApplyAdjustment(leg.Adjustment, leg.Action == LegRevert, now); err != nil {
			leg.Status = LegFailed
			leg.Err = err
			return err
		}

		if !ok {
			p.touched[date] = balance
			p.order = append(p.order, date)
		}
		leg.Status = LegApplied
	}

	return nil
}
