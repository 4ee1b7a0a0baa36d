package client

import (
	"context"
	"log"
	"sync"
	"time"

	"darts-match-service/models"
)

// Debounce windows for reconciliation fetches.
const (
	DefaultListDebounce  = 400 * time.Millisecond
	DefaultMatchDebounce = 250 * time.Millisecond
)

const fetchTimeout = 5 * time.Second

// Fetcher is the authoritative read side: every reconciliation is a full
// point fetch or list reload, never a delta applied from an event payload.
type Fetcher interface {
	FetchMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListMatches(ctx context.Context) ([]models.Match, error)
	HasJoined(ctx context.Context, matchID string) (bool, error)
}

// FeedEvent is one change notification from the shared feed. The feed may
// redeliver and offers no ordering guarantee; events only ever schedule a
// fetch, so duplicates and reordering are harmless.
type FeedEvent struct {
	Type  string // "match" for record insert/update notifications
	Match models.Match
}

// Snapshot is the observable state handed to the presentation layer.
type Snapshot struct {
	PendingChallenges []models.Match // challenges awaiting my answer
	SentChallenges    []models.Match // my own pending challenges (UI "sent")
	ReadyMatches      []models.Match // accepted or joinable, waiting on a join
	ActiveMatch       *models.Match  // the match I am inside
	IsLoading         bool
	Err               error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounceWindows overrides the list and focused-match debounce windows.
func WithDebounceWindows(list, match time.Duration) Option {
	return func(c *Coordinator) {
		c.listWindow = list
		c.matchWindow = match
	}
}

// WithRevealDelay overrides the reveal window of the turn coordinator.
func WithRevealDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.turn.revealDelay = d }
}

// WithNavigateFunc installs the one-time navigation effect, fired when a
// watched match is first observed in progress.
func WithNavigateFunc(fn func(matchID string)) Option {
	return func(c *Coordinator) { c.onNavigate = fn }
}

// WithCompletionFunc installs the one-time match completion callback.
func WithCompletionFunc(fn func(*models.Match)) Option {
	return func(c *Coordinator) { c.turn.onComplete = fn }
}

// Coordinator is the single logical owner of one user's remote-match
// session: it consumes change notifications, schedules debounced
// reconciliation fetches, gates them through the flow gate, and exposes the
// resulting observable state. One instance per session, explicitly
// constructed and owned by whoever starts the flow.
type Coordinator struct {
	userID     string
	fetcher    Fetcher
	debounce   *Debouncer
	gate       *FlowGate
	latch      *NavigationLatch
	turn       *TurnCoordinator
	onNavigate func(matchID string)

	listWindow  time.Duration
	matchWindow time.Duration

	mu       sync.Mutex
	matches  map[string]models.Match
	joined   map[string]bool
	loading  bool
	applyErr error
}

func NewCoordinator(userID string, fetcher Fetcher, submitter VisitSubmitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		userID:      userID,
		fetcher:     fetcher,
		debounce:    NewDebouncer(),
		gate:        NewFlowGate(),
		latch:       NewNavigationLatch(),
		turn:        NewTurnCoordinator(userID, submitter),
		listWindow:  DefaultListDebounce,
		matchWindow: DefaultMatchDebounce,
		matches:     make(map[string]models.Match),
		joined:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Turn exposes the per-active-match turn coordinator.
func (c *Coordinator) Turn() *TurnCoordinator { return c.turn }

// Gate exposes the flow gate for navigation code.
func (c *Coordinator) Gate() *FlowGate { return c.gate }

// HandleEvent filters one inbound notification and schedules the matching
// reconciliation. Events for the focused match refetch that match; anything
// else reloads the list unless the user is inside a match screen. A burst of
// events for the same key collapses into one fetch.
func (c *Coordinator) HandleEvent(ev FeedEvent) {
	if !c.relevant(ev) {
		return
	}
	id := ev.Match.ID
	if c.gate.AllowMatchRefetch(id) {
		c.debounce.Schedule("match:"+id, c.matchWindow, func() { c.refetchMatch(id) })
		return
	}
	c.debounce.Schedule("list:"+c.userID, c.listWindow, c.reloadList)
}

// relevant filters client-side: the feed may be shared and may redeliver, so
// participant identity, mode and record id are all checked before acting.
func (c *Coordinator) relevant(ev FeedEvent) bool {
	m := &ev.Match
	return m.ID != "" && m.Mode == "remote" && m.IsParticipant(c.userID)
}

// EnterMatch marks the user as inside the match screen. Reentrant: nested
// sub-screens of the same match call EnterMatch again.
func (c *Coordinator) EnterMatch(matchID string) {
	c.gate.Enter(matchID)
}

// LeaveMatch unwinds one screen level. Dropping the last level un-focuses
// the match and cancels any reconciliation still pending for it.
func (c *Coordinator) LeaveMatch() {
	id, focused := c.gate.Focused()
	c.gate.Exit()
	if focused {
		if _, still := c.gate.Focused(); !still {
			c.debounce.Cancel("match:" + id)
		}
	}
}

// Refresh is the explicit initial load. Unlike reconciliation fetches, its
// failure is surfaced on the snapshot.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	matches, err := c.fetcher.ListMatches(ctx)

	c.mu.Lock()
	c.loading = false
	c.applyErr = err
	c.mu.Unlock()

	if err != nil {
		return
	}
	c.applyList(ctx, matches)
}

// Close cancels every pending reconciliation task.
func (c *Coordinator) Close() {
	c.debounce.CancelAll()
}

// Snapshot copies the observable state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{IsLoading: c.loading, Err: c.applyErr}
	for _, m := range c.matches {
		m := m
		switch m.Status {
		case models.MatchStatusPending:
			if m.ReceiverID == c.userID {
				snap.PendingChallenges = append(snap.PendingChallenges, m)
			} else {
				snap.SentChallenges = append(snap.SentChallenges, m)
			}
		case models.MatchStatusReady:
			snap.ReadyMatches = append(snap.ReadyMatches, m)
		case models.MatchStatusLobby:
			// Joinable until the membership record says I am inside.
			if c.joined[m.ID] {
				snap.ActiveMatch = &m
			} else {
				snap.ReadyMatches = append(snap.ReadyMatches, m)
			}
		case models.MatchStatusInProgress:
			snap.ActiveMatch = &m
		}
	}
	return snap
}

// --- reconciliation ---

// refetchMatch is the focused-match reconciliation: one full point fetch of
// the authoritative record. Failures are retried on the next event, never
// surfaced; the UI keeps the last-known-good state.
func (c *Coordinator) refetchMatch(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	m, err := c.fetcher.FetchMatch(ctx, matchID)
	if err != nil {
		log.Printf("[Session] refetch of %s failed, awaiting next event: %v", matchID, err)
		return
	}
	c.apply(ctx, m)
}

// reloadList is the background reconciliation. The gate is re-checked at
// fire time: a task scheduled before the user entered a match must not churn
// the list behind the match screen.
func (c *Coordinator) reloadList() {
	if !c.gate.AllowListReload() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	matches, err := c.fetcher.ListMatches(ctx)
	if err != nil {
		log.Printf("[Session] list reload failed, awaiting next event: %v", err)
		return
	}
	c.applyList(ctx, matches)
}

func (c *Coordinator) applyList(ctx context.Context, matches []models.Match) {
	c.mu.Lock()
	c.matches = make(map[string]models.Match, len(matches))
	c.joined = make(map[string]bool)
	c.mu.Unlock()
	for i := range matches {
		c.apply(ctx, &matches[i])
	}
}

// apply trusts the fetched record as ground truth, including transitions
// this client never requested (the opponent drove them).
func (c *Coordinator) apply(ctx context.Context, m *models.Match) {
	joined := false
	if m.Status == models.MatchStatusLobby {
		var err error
		if joined, err = c.fetcher.HasJoined(ctx, m.ID); err != nil {
			log.Printf("[Session] membership check for %s failed: %v", m.ID, err)
		}
	}

	c.mu.Lock()
	c.matches[m.ID] = *m
	c.joined[m.ID] = joined
	c.mu.Unlock()

	c.turn.Reconcile(m)

	if m.Status == models.MatchStatusInProgress && c.latch.TryNavigate(m.ID) {
		if c.onNavigate != nil {
			c.onNavigate(m.ID)
		}
	}
	if m.Status.Terminal() {
		c.latch.Clear(m.ID)
	}
}
