// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartLedgerJobs schedules the periodic ledger audit and, when exporter is
// not nil, the ledger export. The caller owns the returned scheduler and
// must Shutdown it.
func StartLedgerJobs(ctx context.Context, auditor *LedgerAuditor, auditEvery time.Duration, exporter *LedgerExporter, exportEvery time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(auditEvery),
		gocron.NewTask(func() {
			if _, err := auditor.Audit(ctx); err != nil {
				log.Printf("[Scheduler] Ledger audit failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if exporter != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(exportEvery),
			gocron.NewTask(func() {
				if _, err := exporter.Export(ctx); err != nil {
					log.Printf("[Scheduler] Ledger export failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	log.Printf("✅ [Scheduler] Ledger audit every %s, export enabled=%t", auditEvery, exporter != nil)
	return sched, nil
}
