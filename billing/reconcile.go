/*
reconcile.go - Cycle billing and the schedule-write saga

PURPOSE:
  Two responsibilities that both touch ledger and schedule together:

  1. Cycle billing: detect, from completed-session history, that a student
     crossed into a new billing cycle, and request the idempotent cycle
     charge for that month.

  2. The schedule-write saga: a schedule mutation and its ledger pruning
     are two separate, independently-failing writes. The pruning runs
     first - the UI reads charge state and schedule state together, so the
     prune must be durable before the event write is. Both step results
     are exposed to the caller; a crash between the two leaves a
     temporarily inconsistent state that self-heals on the next
     reconciliation pass, surfaced as InconsistentStateWarning rather than
     hidden.

  No locking spans the two writes. Last writer wins; retries are safe
  because every step is idempotent.
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/schedule"
)

// Reconciler wires the ledger to the schedule store.
type Reconciler struct {
	Store  schedule.Store
	Ledger LedgerStore
}

func NewReconciler(store schedule.Store, ledger LedgerStore) *Reconciler {
	return &Reconciler{Store: store, Ledger: ledger}
}

// =============================================================================
// CYCLE BILLING
// =============================================================================

// CycleAmount returns the full price of one 4-week curriculum cycle:
// every required session across the four weeks at the student's rates.
func CycleAmount(s schedule.Student) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Curriculum {
		total = total.Add(s.Rates.Master.Mul(decimal.NewFromInt(int64(p.MasterCount))))
		total = total.Add(s.Rates.Vocal.Mul(decimal.NewFromInt(int64(p.VocalCount))))
		total = total.Add(s.Rates.Vocal30.Mul(decimal.NewFromInt(int64(p.Vocal30Count))))
	}
	return total
}

// DueCycleDates returns the cycle boundary dates for which the student
// has not yet been billed.
func (r *Reconciler) DueCycleDates(ctx context.Context, s schedule.Student) ([]schedule.Day, error) {
	history, err := r.Store.ListEvents(ctx, schedule.EventFilter{
		StudentID:    s.ID,
		ConcreteOnly: true,
	})
	if err != nil {
		return nil, err
	}
	ledger, err := r.Ledger.LoadLedger(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return schedule.CycleStartDates(s, history, ledger.LatestTargetDate()), nil
}

// CycleBillingResult reports what RunCycleBilling did for one student.
type CycleBillingResult struct {
	StudentID string
	Created   []ChargeItem
	Skipped   int // boundaries already covered by an existing cycle charge
}

// RunCycleBilling requests the cycle charge for every due boundary. The
// per-month idempotency guard in the ledger makes re-runs harmless.
func (r *Reconciler) RunCycleBilling(ctx context.Context, s schedule.Student) (CycleBillingResult, error) {
	result := CycleBillingResult{StudentID: s.ID}

	due, err := r.DueCycleDates(ctx, s)
	if err != nil {
		return result, err
	}
	if len(due) == 0 {
		return result, nil
	}

	amount := CycleAmount(s)
	if !amount.IsPositive() {
		// No rates configured; nothing billable.
		return result, nil
	}

	ledger, err := r.Ledger.LoadLedger(ctx, s.ID)
	if err != nil {
		return result, err
	}

	changed := false
	for _, boundary := range due {
		before := len(ledger.Charges)
		item, err := ledger.RequestCycleBilling(boundary, amount, "cycle renewal "+boundary.YearMonth())
		if err != nil {
			return result, err
		}
		if len(ledger.Charges) == before {
			result.Skipped++
			continue
		}
		result.Created = append(result.Created, item)
		changed = true
	}

	if changed {
		if err := r.Ledger.SaveLedger(ctx, s.ID, ledger); err != nil {
			return result, &schedule.WriteFailure{Op: "ledger.save", Err: err}
		}
	}
	return result, nil
}

// =============================================================================
// SCHEDULE-WRITE SAGA
// =============================================================================

// WriteResult exposes both saga steps to the caller.
type WriteResult struct {
	Pruned  []ChargeItem
	Event   *schedule.ScheduleEvent
	Warning *schedule.InconsistentStateWarning
}

// SaveEvent runs the two-step saga for creating or moving an event:
// prune the student's ledger at the event's effective date, then persist
// the event. The prune is written first so charge state and schedule
// state stay readable together. An event write failure after a committed
// prune surfaces as both an error and a warning in the result.
func (r *Reconciler) SaveEvent(ctx context.Context, ev schedule.ScheduleEvent) (WriteResult, error) {
	var result WriteResult

	if !ev.Recurring && ev.Date.IsZero() {
		return result, &schedule.ValidationError{Field: "date", Reason: "required for non-recurring events"}
	}
	if ev.Recurring && ev.RecurringStartDate.IsZero() {
		return result, &schedule.ValidationError{Field: "recurringStartDate", Reason: "required for recurring events"}
	}

	// Step 1: ledger prune, durable before the event write.
	if ev.StudentID != "" && !ev.Recurring && !ev.Ghost {
		ledger, err := r.Ledger.LoadLedger(ctx, ev.StudentID)
		if err != nil {
			return result, err
		}
		pruned := ledger.PruneOnScheduleWrite(ev.Date)
		if len(pruned) > 0 {
			if err := r.Ledger.SaveLedger(ctx, ev.StudentID, ledger); err != nil {
				return result, &schedule.WriteFailure{Op: "ledger.save", Err: err}
			}
			result.Pruned = pruned
		}
	}

	// Step 2: event write.
	if err := r.Store.SaveEvent(ctx, ev); err != nil {
		if len(result.Pruned) > 0 {
			result.Warning = &schedule.InconsistentStateWarning{
				StudentID: ev.StudentID,
				Detail:    "ledger pruned but event write failed; re-run the save",
			}
		}
		return result, &schedule.WriteFailure{Op: "event.save", Err: err}
	}
	result.Event = &ev
	return result, nil
}

// DeleteEvent runs the delete saga: prune the ledger for the deleted
// event's date and billing month, then delete the event document.
func (r *Reconciler) DeleteEvent(ctx context.Context, eventID string) (WriteResult, error) {
	var result WriteResult

	ev, err := r.Store.GetEvent(ctx, eventID)
	if err != nil {
		return result, err
	}
	if ev == nil {
		return result, &schedule.NotFoundError{Kind: "event", ID: eventID}
	}

	if ev.StudentID != "" && !ev.Recurring {
		ledger, err := r.Ledger.LoadLedger(ctx, ev.StudentID)
		if err != nil {
			return result, err
		}
		pruned := ledger.PruneOnScheduleDelete(ev.Date, ev.Date.YearMonth())
		if len(pruned) > 0 {
			if err := r.Ledger.SaveLedger(ctx, ev.StudentID, ledger); err != nil {
				return result, &schedule.WriteFailure{Op: "ledger.save", Err: err}
			}
			result.Pruned = pruned
		}
	}

	if err := r.Store.DeleteEvent(ctx, eventID); err != nil {
		if len(result.Pruned) > 0 {
			result.Warning = &schedule.InconsistentStateWarning{
				StudentID: ev.StudentID,
				Detail:    "ledger pruned but event delete failed; re-run the delete",
			}
		}
		return result, &schedule.WriteFailure{Op: "event.delete", Err: err}
	}
	result.Event = ev
	return result, nil
}
