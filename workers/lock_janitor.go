package workers

import (
	"context"
	"log"
	"time"

	"darts-match-service/services"
)

// LockJanitor sweeps lock rows left behind by the best-effort multi-row
// writes in the lock service. The lock design fails open, so the only bad
// leftover is a stale row blocking a user's next match; the janitor deletes
// any lock whose match is terminal or missing.
type LockJanitor struct {
	Locks    *services.LockService
	Interval time.Duration
}

func NewLockJanitor(locks *services.LockService) *LockJanitor {
	return &LockJanitor{Locks: locks, Interval: 30 * time.Second}
}

// Start blocks until ctx is cancelled.
func (j *LockJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	log.Println("[Janitor] lock janitor running")
	for {
		select {
		case <-ctx.Done():
			log.Println("[Janitor] stopping")
			return
		case <-ticker.C:
			removed, err := j.Locks.ClearOrphans()
			if err != nil {
				log.Printf("[Janitor] sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[Janitor] cleared %d orphaned lock(s)", removed)
			}
		}
	}
}
