package models

import "time"

// Lock row states. A row is created when a match commits (accept) and the
// status flips to joined when that participant enters the match screen.
const (
	LockStatusCommitted = "committed"
	LockStatusJoined    = "joined"
)

// MatchLock marks a user as committed to one active remote match. At most
// one row exists per user; the absence of a row means "no active match".
// Creation is a best-effort multi-row write, so a partial failure degrades
// toward no lock rather than toward a double-lock.
type MatchLock struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"uniqueIndex;not null" json:"user_id"`
	MatchID    string `gorm:"index;not null" json:"match_id"`
	LockStatus string `gorm:"type:varchar(16);not null;default:'committed'" json:"lock_status"`

	// Hard-deleted on release; soft delete would leave the unique index
	// blocking the user's next match.
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (MatchLock) TableName() string { return "match_locks" }
