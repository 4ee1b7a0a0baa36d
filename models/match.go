package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchStatus is the server-owned lifecycle state of a remote match.
// Clients only ever request transitions; the next fetch is ground truth.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"     // awaiting receiver response
	MatchStatusReady      MatchStatus = "ready"       // accepted, join window open
	MatchStatusLobby      MatchStatus = "lobby"       // one participant joined
	MatchStatusInProgress MatchStatus = "in_progress" // both joined, play underway
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusExpired    MatchStatus = "expired"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// statusTransitions is the full edge set of the lifecycle graph.
// Terminal states have no outgoing edges.
var statusTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:    {MatchStatusReady, MatchStatusCancelled, MatchStatusExpired},
	MatchStatusReady:      {MatchStatusLobby, MatchStatusCancelled, MatchStatusExpired},
	MatchStatusLobby:      {MatchStatusInProgress, MatchStatusCancelled},
	MatchStatusInProgress: {MatchStatusCompleted, MatchStatusCancelled},
	MatchStatusCompleted:  {},
	MatchStatusExpired:    {},
	MatchStatusCancelled:  {},
}

func (s MatchStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s MatchStatus) Terminal() bool {
	edges, ok := statusTransitions[s]
	return ok && len(edges) == 0
}

func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, e := range statusTransitions[s] {
		if e == next {
			return true
		}
	}
	return false
}

// TerminalStatuses lists the states a match can never leave.
func TerminalStatuses() []MatchStatus {
	return []MatchStatus{MatchStatusCompleted, MatchStatusExpired, MatchStatusCancelled}
}

// Supported x01 game types and their starting scores.
const (
	GameType501 = "501"
	GameType301 = "301"
)

func StartingScore(gameType string) (int, bool) {
	switch gameType {
	case GameType501:
		return 501, true
	case GameType301:
		return 301, true
	default:
		return 0, false
	}
}

// LastVisitPayload is the ephemeral transcript of the most recent turn.
// It is informational only: consumed once for the reveal, then superseded
// by the next visit. It is not authoritative turn history.
type LastVisitPayload struct {
	PlayerID    string    `json:"player_id"`
	Darts       []int     `json:"darts"`
	ScoreBefore int       `json:"score_before"`
	ScoreAfter  int       `json:"score_after"`
	ThrownAt    time.Time `json:"thrown_at"`
}

// Match is the shared backend record both participants observe. All writes
// go through the match service; clients never mutate status directly.
type Match struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Mode        string `gorm:"not null;default:'remote'" json:"mode"`
	GameType    string `gorm:"not null" json:"game_type"`
	MatchFormat int    `gorm:"not null;default:1" json:"match_format"` // best-of legs

	ChallengerID string `gorm:"index;not null" json:"challenger_id"`
	ReceiverID   string `gorm:"index;not null" json:"receiver_id"`

	Status          MatchStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	CurrentPlayerID *string     `json:"current_player_id,omitempty"` // meaningful only while in_progress

	// Remaining points and legs won, per participant.
	ChallengerScore int `json:"challenger_score" gorm:"default:0"`
	ReceiverScore   int `json:"receiver_score" gorm:"default:0"`
	ChallengerLegs  int `json:"challenger_legs" gorm:"default:0"`
	ReceiverLegs    int `json:"receiver_legs" gorm:"default:0"`

	ChallengeExpiresAt  *time.Time `json:"challenge_expires_at,omitempty"`
	JoinWindowExpiresAt *time.Time `json:"join_window_expires_at,omitempty"`

	LastVisit *LastVisitPayload `gorm:"serializer:json" json:"last_visit,omitempty"`

	EndedBy     *string `json:"ended_by,omitempty"`
	EndedReason *string `json:"ended_reason,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IsParticipant reports whether userID is one of the two players.
func (m *Match) IsParticipant(userID string) bool {
	return userID != "" && (userID == m.ChallengerID || userID == m.ReceiverID)
}

// Opponent returns the other participant's id.
func (m *Match) Opponent(userID string) string {
	if userID == m.ChallengerID {
		return m.ReceiverID
	}
	return m.ChallengerID
}

// LegsToWin derives the winning leg count from the best-of format.
func (m *Match) LegsToWin() int {
	return m.MatchFormat/2 + 1
}

// ScoreOf returns the remaining points for the given participant.
func (m *Match) ScoreOf(userID string) int {
	if userID == m.ChallengerID {
		return m.ChallengerScore
	}
	return m.ReceiverScore
}
