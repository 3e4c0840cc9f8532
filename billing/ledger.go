/*
Package billing keeps each student's outstanding-charge ledger truthful
relative to the actual, non-speculative schedule.

PURPOSE:
  The ledger is the one mutating part of the core. Charges are created
  manually or at rotation-cycle boundaries, and pruned automatically when
  schedule events are saved, moved, or deleted on or after a charge's
  target date.

KEY CONCEPTS IN THIS FILE (ledger.go):
  - ChargeItem: one outstanding billing entry, manual or cycle
  - Ledger: a student's charges, kept sorted ascending by target date

CHARGE LIFECYCLE:
  created -> settled (removed on payment) | pruned (invalidated by a
  schedule change). Both terminal; no item ever transitions back.

CYCLE CHARGES:
  A cycle charge is identified by a structured {kind, year-month}
  discriminator, never by matching memo text. Its target date is
  normalized to the 1st of its billing month.

SEE ALSO:
  - reconcile.go: drives cycle charges and the schedule-write saga
  - schedule/rotation.go: where cycle boundaries come from
*/
package billing

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// CHARGE ITEM
// =============================================================================

type ChargeKind string

const (
	KindManual ChargeKind = "manual"
	KindCycle  ChargeKind = "cycle"
)

// ChargeItem is one outstanding billing entry on a student's ledger.
type ChargeItem struct {
	ID         string
	Kind       ChargeKind
	TargetDate schedule.Day // the billing-cycle date it represents
	Amount     decimal.Decimal
	Memo       string

	// YearMonth identifies the billing month of a cycle charge
	// ("2006-01"). Empty for manual charges.
	YearMonth string
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is one student's outstanding charges, sorted ascending by target
// date. The zero value is a settled, empty ledger.
type Ledger struct {
	Charges []ChargeItem
}

// Outstanding reports whether any charge remains unsettled.
func (l *Ledger) Outstanding() bool { return len(l.Charges) > 0 }

// Settled is the inverse of Outstanding.
func (l *Ledger) Settled() bool { return len(l.Charges) == 0 }

// LatestTargetDate returns the latest charge target date, or the zero Day
// for an empty ledger. The ledger is sorted, so this is the last entry.
func (l *Ledger) LatestTargetDate() schedule.Day {
	if len(l.Charges) == 0 {
		return schedule.Day{}
	}
	return l.Charges[len(l.Charges)-1].TargetDate
}

func (l *Ledger) resort() {
	sort.SliceStable(l.Charges, func(i, j int) bool {
		return l.Charges[i].TargetDate.Before(l.Charges[j].TargetDate)
	})
}

// =============================================================================
// OPERATIONS
// =============================================================================

// AddCharge inserts a manual charge. Non-positive amounts are rejected
// before anything changes.
func (l *Ledger) AddCharge(targetDate schedule.Day, amount decimal.Decimal, memo string) (ChargeItem, error) {
	if !amount.IsPositive() {
		return ChargeItem{}, &schedule.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if targetDate.IsZero() {
		return ChargeItem{}, &schedule.ValidationError{Field: "targetDate", Reason: "required"}
	}
	item := ChargeItem{
		ID:         uuid.NewString(),
		Kind:       KindManual,
		TargetDate: targetDate,
		Amount:     amount,
		Memo:       memo,
	}
	l.Charges = append(l.Charges, item)
	l.resort()
	return item, nil
}

// RequestCycleBilling inserts the cycle charge for a billing month,
// guarded by idempotency: a cycle charge for the same month is never
// duplicated, and the existing item is returned instead. The charge's
// target date is the 1st of the month.
func (l *Ledger) RequestCycleBilling(month schedule.Day, amount decimal.Decimal, label string) (ChargeItem, error) {
	if !amount.IsPositive() {
		return ChargeItem{}, &schedule.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if month.IsZero() {
		return ChargeItem{}, &schedule.ValidationError{Field: "month", Reason: "required"}
	}

	ym := month.YearMonth()
	for _, c := range l.Charges {
		if c.Kind == KindCycle && c.YearMonth == ym {
			return c, nil
		}
	}

	item := ChargeItem{
		ID:         uuid.NewString(),
		Kind:       KindCycle,
		TargetDate: schedule.NewDay(month.Year(), month.Month(), 1),
		Amount:     amount,
		Memo:       label,
		YearMonth:  ym,
	}
	l.Charges = append(l.Charges, item)
	l.resort()
	return item, nil
}

// RemoveCharge settles a charge by id. The ledger reports settled once
// the last charge is removed.
func (l *Ledger) RemoveCharge(id string) error {
	for i, c := range l.Charges {
		if c.ID == id {
			l.Charges = append(l.Charges[:i], l.Charges[i+1:]...)
			return nil
		}
	}
	return &schedule.NotFoundError{Kind: "charge", ID: id}
}

// PruneOnScheduleWrite drops every charge whose target date falls on or
// before effectiveDate: booking or moving a lesson onto or past a
// charge's target date means that charge's billing period is serviced by
// the new placement and must not double-bill. Charges targeting dates
// strictly after the write survive. Idempotent for a fixed effectiveDate.
func (l *Ledger) PruneOnScheduleWrite(effectiveDate schedule.Day) []ChargeItem {
	return l.prune(func(c ChargeItem) bool {
		return c.TargetDate.BeforeOrEqual(effectiveDate)
	})
}

// PruneOnScheduleDelete drops every charge with a target date on or after
// the deleted event's date, and also the cycle charge for the deleted
// event's billing month. The second condition exists because a cycle
// charge's target date is normalized to the 1st of its month and would
// not otherwise match a mid-month deletion.
func (l *Ledger) PruneOnScheduleDelete(deletedDate schedule.Day, deletedYearMonth string) []ChargeItem {
	return l.prune(func(c ChargeItem) bool {
		if c.TargetDate.AfterOrEqual(deletedDate) {
			return true
		}
		return c.Kind == KindCycle && c.YearMonth == deletedYearMonth
	})
}

func (l *Ledger) prune(drop func(ChargeItem) bool) []ChargeItem {
	var kept, pruned []ChargeItem
	for _, c := range l.Charges {
		if drop(c) {
			pruned = append(pruned, c)
		} else {
			kept = append(kept, c)
		}
	}
	l.Charges = kept
	return pruned
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists one ledger per student. SaveLedger replaces the
// whole ledger: last writer wins, no cross-entity transaction.
type LedgerStore interface {
	LoadLedger(ctx context.Context, studentID string) (Ledger, error)
	SaveLedger(ctx context.Context, studentID string, l Ledger) error
}
