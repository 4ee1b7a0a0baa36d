package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"darts-match-service/models"
	"darts-match-service/utils"
)

// ErrInputLocked rejects a submission locally: it is not my turn, a
// submission is already outstanding, or a reveal is showing. No network
// call is made.
var ErrInputLocked = errors.New("visit input is locked")

// VisitSubmitter sends one completed turn as a single atomic request.
type VisitSubmitter interface {
	SubmitVisit(ctx context.Context, matchID string, darts []int) error
}

// DefaultRevealDelay is how long the last submitted visit stays on screen
// before input unlocks. It guarantees the non-acting party sees the result
// and prevents both sides acting before either has observed the update.
const DefaultRevealDelay = 1500 * time.Millisecond

// TurnState is the per-match view exposed to the presentation layer.
type TurnState struct {
	IsMyTurn          bool
	CurrentThrow      []int
	RevealVisit       *models.LastVisitPayload
	SuggestedCheckout string
}

// TurnCoordinator interprets refreshed match records into turn ownership and
// gates visit submission. At most one submission is outstanding at any time;
// its result is only ever learned from the next authoritative fetch.
type TurnCoordinator struct {
	mu          sync.Mutex
	userID      string
	submitter   VisitSubmitter
	revealDelay time.Duration
	onComplete  func(*models.Match)

	latest        *models.Match
	myTurn        bool
	outstanding   bool
	revealing     bool
	reveal        *models.LastVisitPayload
	currentThrow  []int
	lastVisitSeen time.Time
	completed     bool
	suggested     string
}

func NewTurnCoordinator(userID string, submitter VisitSubmitter) *TurnCoordinator {
	return &TurnCoordinator{
		userID:      userID,
		submitter:   submitter,
		revealDelay: DefaultRevealDelay,
	}
}

// StageDart appends one dart score to the staging buffer.
func (t *TurnCoordinator) StageDart(score int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inputUnlocked() {
		return ErrInputLocked
	}
	if len(t.currentThrow) >= 3 || score < 0 || score > 60 {
		return ErrInputLocked
	}
	t.currentThrow = append(t.currentThrow, score)
	return nil
}

// ClearThrow empties the staging buffer.
func (t *TurnCoordinator) ClearThrow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentThrow = nil
}

// Submit sends the staged darts. The staging buffer is cleared immediately
// and input locks; there is no optimistic score mutation. A failed send
// unlocks input so the turn can be retried.
func (t *TurnCoordinator) Submit(ctx context.Context, matchID string) error {
	t.mu.Lock()
	if !t.inputUnlocked() || len(t.currentThrow) == 0 {
		t.mu.Unlock()
		return ErrInputLocked
	}
	darts := t.currentThrow
	t.currentThrow = nil
	t.outstanding = true
	t.mu.Unlock()

	if err := t.submitter.SubmitVisit(ctx, matchID, darts); err != nil {
		t.mu.Lock()
		t.outstanding = false
		t.mu.Unlock()
		return err
	}
	return nil
}

// Reconcile applies a freshly fetched authoritative record. An unseen
// lastVisit payload opens the reveal window; completion fires the callback
// exactly once.
func (t *TurnCoordinator) Reconcile(m *models.Match) {
	var completeCb func(*models.Match)

	t.mu.Lock()
	adopting := t.latest == nil || t.latest.ID != m.ID
	if adopting && t.latest != nil {
		// A different record only takes over the turn state when it is the
		// live match; finished or pending records of other matches must not
		// clobber the one being played.
		if m.Status != models.MatchStatusLobby && m.Status != models.MatchStatusInProgress {
			t.mu.Unlock()
			return
		}
	}
	if adopting {
		// History already on an adopted record is not replayed: no reveal
		// for its existing lastVisit and no completion effect for a match
		// that finished before this session started watching it.
		t.completed = m.Status == models.MatchStatusCompleted
		t.lastVisitSeen = time.Time{}
		if m.LastVisit != nil {
			t.lastVisitSeen = m.LastVisit.ThrownAt
		}
	}
	t.latest = m

	if m.LastVisit != nil && m.LastVisit.ThrownAt.After(t.lastVisitSeen) {
		t.lastVisitSeen = m.LastVisit.ThrownAt
		t.reveal = m.LastVisit
		t.revealing = true
		time.AfterFunc(t.revealDelay, t.endReveal)
	}
	// Whatever the record says, the fetch is the submission's resolution.
	t.outstanding = false

	if m.Status == models.MatchStatusCompleted && !t.completed {
		t.completed = true
		completeCb = t.onComplete
	}

	t.recomputeLocked()
	t.mu.Unlock()

	if completeCb != nil {
		completeCb(m)
	}
}

// State snapshots the turn view for the presentation layer.
func (t *TurnCoordinator) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TurnState{
		IsMyTurn:          t.myTurn && t.inputUnlocked(),
		CurrentThrow:      append([]int(nil), t.currentThrow...),
		RevealVisit:       t.reveal,
		SuggestedCheckout: t.suggested,
	}
}

func (t *TurnCoordinator) endReveal() {
	t.mu.Lock()
	t.revealing = false
	t.reveal = nil
	t.recomputeLocked()
	t.mu.Unlock()
}

func (t *TurnCoordinator) inputUnlocked() bool {
	return t.myTurn && !t.outstanding && !t.revealing
}

func (t *TurnCoordinator) recomputeLocked() {
	m := t.latest
	if m == nil || m.Status != models.MatchStatusInProgress {
		t.myTurn = false
		t.suggested = ""
		return
	}
	t.myTurn = m.CurrentPlayerID != nil && *m.CurrentPlayerID == t.userID
	t.suggested = utils.SuggestCheckout(m.ScoreOf(t.userID))
}
