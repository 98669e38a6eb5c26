package reminder

import (
	"context"
	"log"
	"runtime/debug"
	"time"
)

// AutoBackupRunner triggers due auto-backups. Runs after the reminder pass so
// a slow backup never delays deliveries.
type AutoBackupRunner interface {
	RunAutoBackups(ctx context.Context) error
}

// Ticker drives the dispatcher on a fixed interval. One pass per interval:
// sweep, dispatch, then the auto-backup check.
type Ticker struct {
	dispatcher *Dispatcher
	backups    AutoBackupRunner // nil disables auto-backups
	interval   time.Duration
}

func NewTicker(dispatcher *Dispatcher, backups AutoBackupRunner, intervalSeconds int) *Ticker {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return &Ticker{
		dispatcher: dispatcher,
		backups:    backups,
		interval:   time.Duration(intervalSeconds) * time.Second,
	}
}

// Run blocks until ctx is cancelled, running one pass immediately and then one
// per interval. A panicking pass is logged and the loop keeps going; the
// reminder daemon must outlive any single bad tick.
func (t *Ticker) Run(ctx context.Context) {
	log.Printf("[Ticker] Started: interval=%s", t.interval)

	t.safeTick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Ticker] Stopped")
			return
		case <-ticker.C:
			t.safeTick(ctx)
		}
	}
}

func (t *Ticker) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Ticker] PANIC recovered: %v\n%s", r, debug.Stack())
		}
	}()

	t.dispatcher.Tick(ctx)

	if t.backups != nil {
		if err := t.backups.RunAutoBackups(ctx); err != nil {
			log.Printf("[Ticker] Auto-backup check failed: %v", err)
		}
	}
}
