// services/scheduler.go
package services

import (
	"log"
	"time"

	"darts-match-service/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep runs the active half of deadline handling: challenges and
// join windows are also checked lazily on every fetch, but the sweep makes
// sure an abandoned match expires even when nobody is looking at it.
func (s *MatchService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Second),
		gocron.NewTask(func() {
			now := time.Now()

			var stale []models.Match
			err := s.DB.
				Where("status = ? AND challenge_expires_at <= ?", models.MatchStatusPending, now).
				Or("status = ? AND join_window_expires_at <= ?", models.MatchStatusReady, now).
				Find(&stale).Error
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}

			for i := range stale {
				s.expire(&stale[i])
				log.Printf("[Sweep] expired match %s (%s)", stale[i].ID, stale[i].Status)
			}
		}),
	)
}
