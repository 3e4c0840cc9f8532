/*
scheduler.go - Automated cycle billing scheduler

PURPOSE:
  Periodically scans active students for completed billing cycles and
  requests the corresponding cycle charges. Manual billing through the
  API stays available; the scheduler only catches what nobody clicked.

DESIGN:
  - Cron-driven background job with a configurable schedule expression
  - Scans active students only
  - Cycle charge creation is idempotent, so overlapping runs are safe
  - Per-student failures are logged and do not abort the scan

CONFIGURATION:
  - Spec: cron expression (default: hourly, "0 * * * *")
  - Enabled: whether the scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(store, ledgers)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunCycleBilling endpoint (manual billing)
  - billing/reconcile.go: Reconciler.RunCycleBilling
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/lesson-engine/billing"
	"github.com/warp/lesson-engine/schedule"
)

// BillingScheduler runs cycle billing scans on a cron schedule.
type BillingScheduler struct {
	Store      schedule.Store
	Reconciler *billing.Reconciler
	Spec       string
	Enabled    bool

	cron *cron.Cron
	mu   sync.Mutex
}

// NewBillingScheduler creates a scheduler with the default hourly spec.
func NewBillingScheduler(store schedule.Store, ledgers billing.LedgerStore) *BillingScheduler {
	return &BillingScheduler{
		Store:      store,
		Reconciler: billing.NewReconciler(store, ledgers),
		Spec:       "0 * * * *",
		Enabled:    true,
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}

	bs.cron = cron.New()
	if _, err := bs.cron.AddFunc(bs.Spec, bs.scan); err != nil {
		return err
	}
	bs.cron.Start()

	log.Printf("[Scheduler] Started with cron spec: %q", bs.Spec)
	return nil
}

// Stop stops the scheduler and waits for a running scan to finish.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.cron != nil {
		ctx := bs.cron.Stop()
		<-ctx.Done()
		bs.cron = nil
		log.Println("[Scheduler] Stopped")
	}
}

// scan runs cycle billing for every active student.
func (bs *BillingScheduler) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	students, err := bs.Store.ListStudents(ctx, true)
	if err != nil {
		log.Printf("[Scheduler] Failed to list students: %v", err)
		return
	}

	created, skipped := 0, 0
	for _, s := range students {
		result, err := bs.Reconciler.RunCycleBilling(ctx, s)
		if err != nil {
			log.Printf("[Scheduler] Cycle billing failed for student %s: %v", s.ID, err)
			continue
		}
		created += len(result.Created)
		skipped += result.Skipped
	}

	if created > 0 || skipped > 0 {
		log.Printf("[Scheduler] Cycle billing scan: %d students, %d charges created, %d already billed",
			len(students), created, skipped)
	}
}
