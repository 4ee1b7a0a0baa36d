package services

import (
	"time"

	"darts-match-service/models"
)

const (
	maxDartsPerVisit = 3
	maxDartScore     = 60 // treble twenty
)

// SubmitVisit applies one completed turn of up to three darts as a single
// atomic write. The acknowledgment carries no game result: the authoritative
// effect is only observed through the next fetch of the match record.
//
// x01 arithmetic: the visit total is subtracted from the thrower's remaining
// score. Going below zero or landing on exactly one is a bust and leaves the
// score untouched. Reaching exactly zero wins the leg; winning more than half
// the best-of legs completes the match.
func (s *MatchService) SubmitVisit(userID, matchID string, darts []int) error {
	m, err := s.load(userID, matchID)
	if err != nil {
		return err
	}
	if m.Status != models.MatchStatusInProgress {
		return ErrInvalidStatus
	}
	if m.CurrentPlayerID == nil || *m.CurrentPlayerID != userID {
		return ErrNotAuthorized
	}
	if len(darts) == 0 || len(darts) > maxDartsPerVisit {
		return ErrInvalidVisit
	}
	total := 0
	for _, d := range darts {
		if d < 0 || d > maxDartScore {
			return ErrInvalidVisit
		}
		total += d
	}

	before := m.ScoreOf(userID)
	after := before - total
	busted := after < 0 || after == 1
	if busted {
		after = before
	}

	visit := models.LastVisitPayload{
		PlayerID:    userID,
		Darts:       append([]int(nil), darts...),
		ScoreBefore: before,
		ScoreAfter:  after,
		ThrownAt:    time.Now(),
	}

	updates := map[string]any{
		"status":            models.MatchStatusInProgress,
		"last_visit":        &visit,
		"current_player_id": m.Opponent(userID),
	}
	s.applyScore(m, userID, after, updates)

	if after == 0 && !busted {
		s.applyLegWin(m, userID, updates)
	}

	// Status stays in_progress unless the leg win completed the match; the
	// guarded update still keys on the observed status so a concurrent
	// cancel cannot be overwritten.
	if err := s.visitTransition(m, updates); err != nil {
		return err
	}
	if updates["status"] == models.MatchStatusCompleted {
		s.Locks.ClearForMatch(m.ID)
	}
	return nil
}

func (s *MatchService) applyScore(m *models.Match, userID string, after int, updates map[string]any) {
	if userID == m.ChallengerID {
		updates["challenger_score"] = after
	} else {
		updates["receiver_score"] = after
	}
}

func (s *MatchService) applyLegWin(m *models.Match, winnerID string, updates map[string]any) {
	legs := m.ReceiverLegs + 1
	col := "receiver_legs"
	if winnerID == m.ChallengerID {
		legs = m.ChallengerLegs + 1
		col = "challenger_legs"
	}
	updates[col] = legs

	if legs >= m.LegsToWin() {
		updates["status"] = models.MatchStatusCompleted
		updates["current_player_id"] = nil
		updates["ended_by"] = winnerID
		updates["ended_reason"] = "won"
		return
	}

	// Next leg: both scores reset, the leg loser throws first.
	start, _ := models.StartingScore(m.GameType)
	updates["challenger_score"] = start
	updates["receiver_score"] = start
	updates["current_player_id"] = m.Opponent(winnerID)
}

// visitTransition is the guarded write for a visit. Unlike lifecycle
// transitions the status may stay in_progress, which the edge graph
// does not model, so the guard is only on the observed row state.
func (s *MatchService) visitTransition(m *models.Match, updates map[string]any) error {
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ? AND current_player_id = ?",
			m.ID, models.MatchStatusInProgress, *m.CurrentPlayerID).
		Updates(updates)
	if res.Error != nil {
		return dbErr("match.visit", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStatus
	}
	return nil
}
