package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"darts-match-service/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// FeedService publishes match change notifications to each participant over
// SSE. Delivery is at-least-once with no ordering guarantee; consumers are
// expected to reconcile with a full point fetch, never apply deltas.
type FeedService struct {
	DB *gorm.DB

	// PollInterval controls how often the cursor is advanced. The default
	// matches the reveal/debounce windows downstream.
	PollInterval time.Duration
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{DB: db, PollInterval: time.Second}
}

// StreamMatchFeed streams insert/update notifications for every match the
// authenticated user participates in.
func (s *FeedService) StreamMatchFeed(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	interval := s.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Initialize cursor at the newest record so only fresh changes flow.
		var cursor time.Time
		var latest models.Match
		if err := s.DB.
			Where("challenger_id = ? OR receiver_id = ?", userID, userID).
			Order("updated_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.UpdatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Feed] init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var changed []models.Match
				err := s.DB.
					Where("challenger_id = ? OR receiver_id = ?", userID, userID).
					Where("updated_at > ?", cursor).
					Order("updated_at ASC").
					Find(&changed).Error
				if err != nil {
					log.Printf("[Feed] query error for user %s: %v", userID, err)
					continue
				}
				if len(changed) == 0 {
					continue
				}
				cursor = changed[len(changed)-1].UpdatedAt

				for _, m := range changed {
					payload, err := json.Marshal(m)
					if err != nil {
						// Malformed records are dropped, never fatal.
						log.Printf("[Feed] marshal error for match %s: %v", m.ID, err)
						continue
					}
					fmt.Fprintf(w, "event: match\ndata: %s\n\n", payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
