package services

import (
	"log"

	"darts-match-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LockService owns the lock rows that mark a user as committed to one active
// remote match. Reads fail open: if the lock table cannot be consulted the
// user is treated as free, favoring availability over strict exclusion.
type LockService struct {
	DB *gorm.DB
}

func NewLockService(db *gorm.DB) *LockService {
	return &LockService{DB: db}
}

// HasActiveLock reports whether the user holds any lock row.
func (s *LockService) HasActiveLock(userID string) bool {
	return s.HasActiveLockExcluding(userID, "")
}

// HasActiveLockExcluding ignores a lock for the given match, so accepting the
// match you were challenged in does not count as a second commitment.
func (s *LockService) HasActiveLockExcluding(userID, matchID string) bool {
	var count int64
	q := s.DB.Model(&models.MatchLock{}).Where("user_id = ?", userID)
	if matchID != "" {
		q = q.Where("match_id <> ?", matchID)
	}
	if err := q.Count(&count).Error; err != nil {
		log.Printf("[Locks] read failed for user %s, failing open: %v", userID, err)
		return false
	}
	return count > 0
}

// CreateForMatch writes one lock row per participant. The two inserts are
// not a single cross-user transaction on purpose: a partial failure leaves
// one participant briefly unlocked, which the janitor and terminal cleanup
// tolerate, whereas a stale double-lock would wedge both users.
func (s *LockService) CreateForMatch(m *models.Match) {
	for _, userID := range []string{m.ChallengerID, m.ReceiverID} {
		row := models.MatchLock{
			ID:         uuid.NewString(),
			UserID:     userID,
			MatchID:    m.ID,
			LockStatus: models.LockStatusCommitted,
		}
		if err := s.DB.Create(&row).Error; err != nil {
			log.Printf("[Locks] failed to lock user %s for match %s: %v", userID, m.ID, err)
		}
	}
}

// MarkJoined flips the caller's lock row to joined. The joined rows are the
// membership record used to tell a joinable lobby from one the caller is
// already inside.
func (s *LockService) MarkJoined(userID, matchID string) error {
	res := s.DB.Model(&models.MatchLock{}).
		Where("user_id = ? AND match_id = ?", userID, matchID).
		Update("lock_status", models.LockStatusJoined)
	if res.Error != nil {
		return dbErr("locks.mark_joined", res.Error)
	}
	return nil
}

// HasJoined reports whether the user's lock row for the match is joined.
func (s *LockService) HasJoined(userID, matchID string) bool {
	var count int64
	err := s.DB.Model(&models.MatchLock{}).
		Where("user_id = ? AND match_id = ? AND lock_status = ?", userID, matchID, models.LockStatusJoined).
		Count(&count).Error
	if err != nil {
		log.Printf("[Locks] joined read failed for user %s match %s: %v", userID, matchID, err)
		return false
	}
	return count > 0
}

// JoinedCount returns how many participants have joined the match.
func (s *LockService) JoinedCount(matchID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.MatchLock{}).
		Where("match_id = ? AND lock_status = ?", matchID, models.LockStatusJoined).
		Count(&count).Error
	if err != nil {
		return 0, dbErr("locks.joined_count", err)
	}
	return count, nil
}

// ClearForMatch removes every lock row scoped to the match.
func (s *LockService) ClearForMatch(matchID string) {
	if err := s.DB.Where("match_id = ?", matchID).Delete(&models.MatchLock{}).Error; err != nil {
		log.Printf("[Locks] failed to clear locks for match %s: %v", matchID, err)
	}
}

// ClearOrphans removes lock rows whose match is terminal or gone. This is
// the cleanup half of the fail-open design: anything the best-effort writes
// left behind converges back to "no lock".
func (s *LockService) ClearOrphans() (int64, error) {
	terminal := s.DB.Model(&models.Match{}).Select("id").
		Where("status IN ?", models.TerminalStatuses())
	res := s.DB.Where("match_id IN (?)", terminal).Delete(&models.MatchLock{})
	if res.Error != nil {
		return 0, dbErr("locks.clear_orphans", res.Error)
	}
	removed := res.RowsAffected

	all := s.DB.Model(&models.Match{}).Select("id")
	res = s.DB.Where("match_id NOT IN (?)", all).Delete(&models.MatchLock{})
	if res.Error != nil {
		return removed, dbErr("locks.clear_orphans", res.Error)
	}
	return removed + res.RowsAffected, nil
}
