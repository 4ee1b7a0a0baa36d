package services

import (
	"errors"
	"log"
	"time"

	"darts-match-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// How long a receiver has to answer a challenge.
	ChallengeTTL = 24 * time.Hour
	// How long both participants have to join after an accept.
	JoinWindow = 30 * time.Second
)

// MatchService owns every transition of the shared match record. Transitions
// are guarded UPDATEs (WHERE status = <observed>) so two concurrent requests
// cannot both claim the same edge; the loser re-reads and gets InvalidStatus.
type MatchService struct {
	DB    *gorm.DB
	Locks *LockService
}

func NewMatchService(db *gorm.DB, locks *LockService) *MatchService {
	return &MatchService{DB: db, Locks: locks}
}

// CreateChallenge opens a pending match from the acting user to receiverID.
// The acting user must be lock-free; no match row is written otherwise.
func (s *MatchService) CreateChallenge(userID, receiverID, gameType string, matchFormat int) (*models.Match, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if receiverID == "" || receiverID == userID {
		return nil, ErrNotAuthorized
	}
	if _, ok := models.StartingScore(gameType); !ok {
		return nil, ErrInvalidStatus
	}
	if matchFormat < 1 || matchFormat > 21 || matchFormat%2 == 0 {
		return nil, ErrInvalidStatus
	}
	if s.Locks.HasActiveLock(userID) {
		return nil, ErrAlreadyHasActiveMatch
	}

	expires := time.Now().Add(ChallengeTTL)
	m := models.Match{
		ID:                 uuid.NewString(),
		Mode:               "remote",
		GameType:           gameType,
		MatchFormat:        matchFormat,
		ChallengerID:       userID,
		ReceiverID:         receiverID,
		Status:             models.MatchStatusPending,
		ChallengeExpiresAt: &expires,
	}
	if err := s.DB.Create(&m).Error; err != nil {
		return nil, dbErr("match.create", err)
	}
	return &m, nil
}

// Accept moves pending → ready, opens the join window, and commits both
// participants with lock rows. Only the receiver may accept.
func (s *MatchService) Accept(userID, matchID string) (*models.Match, error) {
	m, err := s.load(userID, matchID)
	if err != nil {
		return nil, err
	}
	if userID != m.ReceiverID {
		return nil, ErrNotAuthorized
	}
	if m.Status != models.MatchStatusPending {
		return nil, ErrInvalidStatus
	}
	if m.ChallengeExpiresAt != nil && time.Now().After(*m.ChallengeExpiresAt) {
		s.expire(m)
		return nil, ErrMatchExpired
	}
	if s.Locks.HasActiveLockExcluding(userID, matchID) {
		return nil, ErrAlreadyHasActiveMatch
	}

	window := time.Now().Add(JoinWindow)
	if err := s.transition(m, models.MatchStatusPending, map[string]any{
		"status":                 models.MatchStatusReady,
		"join_window_expires_at": window,
	}); err != nil {
		return nil, err
	}
	s.Locks.CreateForMatch(m)
	return s.reload(m.ID)
}

// Decline rejects a pending challenge. Receiver-initiated cancel.
func (s *MatchService) Decline(userID, matchID string) (*models.Match, error) {
	return s.end(userID, matchID, "declined")
}

// Cancel withdraws the match from any non-terminal state, by either party.
func (s *MatchService) Cancel(userID, matchID string) (*models.Match, error) {
	return s.end(userID, matchID, "cancelled")
}

// Abort tears down a match from lobby or in_progress. The remaining
// participant observes the cancellation via the change feed.
func (s *MatchService) Abort(userID, matchID string) (*models.Match, error) {
	m, err := s.load(userID, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchStatusLobby && m.Status != models.MatchStatusInProgress {
		return nil, ErrInvalidStatus
	}
	return s.endLoaded(m, userID, "aborted")
}

// Join enters the accepted match: first participant moves ready → lobby,
// the second moves lobby → in_progress and play begins with the challenger.
// Joins are recorded on the caller's lock row, not the match record itself.
func (s *MatchService) Join(userID, matchID string) (*models.Match, error) {
	m, err := s.load(userID, matchID)
	if err != nil {
		return nil, err
	}
	if m.JoinWindowExpiresAt != nil && time.Now().After(*m.JoinWindowExpiresAt) &&
		m.Status == models.MatchStatusReady {
		s.expire(m)
		return nil, ErrMatchExpired
	}

	switch m.Status {
	case models.MatchStatusReady:
		if err := s.transition(m, models.MatchStatusReady, map[string]any{
			"status": models.MatchStatusLobby,
		}); err != nil {
			return nil, err
		}
		if err := s.Locks.MarkJoined(userID, matchID); err != nil {
			log.Printf("[Match] join marker failed for %s: %v", matchID, err)
		}
		return s.reload(matchID)

	case models.MatchStatusLobby:
		if s.Locks.HasJoined(userID, matchID) {
			// Rejoining your own lobby is a no-op, not an error.
			return m, nil
		}
		if err := s.Locks.MarkJoined(userID, matchID); err != nil {
			log.Printf("[Match] join marker failed for %s: %v", matchID, err)
		}
		start, _ := models.StartingScore(m.GameType)
		challenger := m.ChallengerID
		if err := s.transition(m, models.MatchStatusLobby, map[string]any{
			"status":            models.MatchStatusInProgress,
			"current_player_id": challenger,
			"challenger_score":  start,
			"receiver_score":    start,
		}); err != nil {
			return nil, err
		}
		return s.reload(matchID)

	default:
		return nil, ErrInvalidStatus
	}
}

// GetMatch is the authoritative point fetch. Deadlines are evaluated here as
// well as by the sweep, so a fetch never reports a pending/ready match whose
// window has already closed.
func (s *MatchService) GetMatch(userID, matchID string) (*models.Match, error) {
	m, err := s.load(userID, matchID)
	if err != nil {
		return nil, err
	}
	if s.deadlinePassed(m) {
		s.expire(m)
		return s.reload(matchID)
	}
	return m, nil
}

// ListMatches returns every match the user participates in, lazily expiring
// any whose deadline has elapsed.
func (s *MatchService) ListMatches(userID string) ([]models.Match, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	var matches []models.Match
	err := s.DB.
		Where("challenger_id = ? OR receiver_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, dbErr("match.list", err)
	}
	for i := range matches {
		if s.deadlinePassed(&matches[i]) {
			s.expire(&matches[i])
			matches[i].Status = models.MatchStatusExpired
		}
	}
	return matches, nil
}

// HasJoined reports whether the acting user has joined the match. Lobby is
// deliberately ambiguous on the match record itself: whether it is "joinable"
// or "already mine" lives on the lock rows, a second record with its own
// read. See DESIGN.md on the two-query race this preserves.
func (s *MatchService) HasJoined(userID, matchID string) (bool, error) {
	if _, err := s.load(userID, matchID); err != nil {
		return false, err
	}
	return s.Locks.HasJoined(userID, matchID), nil
}

// --- internals ---

func (s *MatchService) load(userID, matchID string) (*models.Match, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	var m models.Match
	if err := s.DB.First(&m, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, dbErr("match.load", err)
	}
	if !m.IsParticipant(userID) {
		return nil, ErrNotAuthorized
	}
	return &m, nil
}

func (s *MatchService) reload(matchID string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.First(&m, "id = ?", matchID).Error; err != nil {
		return nil, dbErr("match.reload", err)
	}
	return &m, nil
}

// transition applies updates only if the row still holds the observed
// status. Zero rows affected means somebody else moved first.
func (s *MatchService) transition(m *models.Match, from models.MatchStatus, updates map[string]any) error {
	next, ok := updates["status"].(models.MatchStatus)
	if !ok || !from.CanTransitionTo(next) {
		return ErrInvalidStatus
	}
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", m.ID, from).
		Updates(updates)
	if res.Error != nil {
		return dbErr("match.transition", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (s *MatchService) end(userID, matchID, reason string) (*models.Match, error) {
	m, err := s.load(userID, matchID)
	if err != nil {
		return nil, err
	}
	return s.endLoaded(m, userID, reason)
}

func (s *MatchService) endLoaded(m *models.Match, userID, reason string) (*models.Match, error) {
	if m.Status.Terminal() {
		return nil, ErrInvalidStatus
	}
	if err := s.transition(m, m.Status, map[string]any{
		"status":       models.MatchStatusCancelled,
		"ended_by":     userID,
		"ended_reason": reason,
	}); err != nil {
		return nil, err
	}
	s.Locks.ClearForMatch(m.ID)
	return s.reload(m.ID)
}

func (s *MatchService) deadlinePassed(m *models.Match) bool {
	now := time.Now()
	switch m.Status {
	case models.MatchStatusPending:
		return m.ChallengeExpiresAt != nil && now.After(*m.ChallengeExpiresAt)
	case models.MatchStatusReady:
		return m.JoinWindowExpiresAt != nil && now.After(*m.JoinWindowExpiresAt)
	default:
		return false
	}
}

// expire persists the expired status and releases the locks. Safe to race:
// the guarded update makes the second writer a no-op.
func (s *MatchService) expire(m *models.Match) {
	if err := s.transition(m, m.Status, map[string]any{
		"status": models.MatchStatusExpired,
	}); err != nil && !errors.Is(err, ErrInvalidStatus) {
		log.Printf("[Match] failed to expire %s: %v", m.ID, err)
		return
	}
	s.Locks.ClearForMatch(m.ID)
}
