package services

import (
	"testing"
	"time"

	"darts-match-service/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestService spins up an isolated in-memory database per test.
func newTestService(t *testing.T) *MatchService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// a single connection keeps every query on the same :memory: database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Match{}, &models.MatchLock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewMatchService(db, NewLockService(db))
}

func mustStatus(t *testing.T, m *models.Match, want models.MatchStatus) {
	t.Helper()
	if m.Status != want {
		t.Fatalf("status = %q, want %q", m.Status, want)
	}
}

func TestChallengeAcceptJoinFlow(t *testing.T) {
	svc := newTestService(t)

	m, err := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mustStatus(t, m, models.MatchStatusPending)
	if m.ChallengeExpiresAt == nil {
		t.Fatal("pending match has no challenge deadline")
	}
	if m.Mode != "remote" {
		t.Fatalf("mode = %q, want remote", m.Mode)
	}

	m, err = svc.Accept("bob", m.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	mustStatus(t, m, models.MatchStatusReady)
	if m.JoinWindowExpiresAt == nil {
		t.Fatal("ready match has no join window")
	}
	if until := time.Until(*m.JoinWindowExpiresAt); until <= 0 || until > JoinWindow {
		t.Fatalf("join window %v out of range", until)
	}
	for _, user := range []string{"alice", "bob"} {
		if !svc.Locks.HasActiveLock(user) {
			t.Fatalf("no lock row for %s after accept", user)
		}
	}

	m, err = svc.Join("alice", m.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	mustStatus(t, m, models.MatchStatusLobby)

	joined, err := svc.HasJoined("alice", m.ID)
	if err != nil || !joined {
		t.Fatalf("HasJoined(alice) = %v, %v; want true", joined, err)
	}
	if joined, _ := svc.HasJoined("bob", m.ID); joined {
		t.Fatal("bob reported joined before joining")
	}

	m, err = svc.Join("bob", m.ID)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	mustStatus(t, m, models.MatchStatusInProgress)
	if m.CurrentPlayerID == nil || *m.CurrentPlayerID != "alice" {
		t.Fatalf("current player = %v, want challenger alice", m.CurrentPlayerID)
	}
	if m.ChallengerScore != 501 || m.ReceiverScore != 501 {
		t.Fatalf("scores = %d/%d, want 501/501", m.ChallengerScore, m.ReceiverScore)
	}
}

func TestChallengeBlockedByActiveLock(t *testing.T) {
	svc := newTestService(t)

	m, err := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept("bob", m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.CreateChallenge("alice", "carol", models.GameType501, 3); err != ErrAlreadyHasActiveMatch {
		t.Fatalf("second challenge err = %v, want ErrAlreadyHasActiveMatch", err)
	}

	var count int64
	svc.DB.Model(&models.Match{}).Count(&count)
	if count != 1 {
		t.Fatalf("match count = %d, want 1 (no record on rejected create)", count)
	}
}

func TestJoinWindowExpiryObservedOnFetch(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Accept("bob", m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	svc.DB.Model(&models.Match{}).Where("id = ?", m.ID).
		Update("join_window_expires_at", past)

	got, err := svc.GetMatch("alice", m.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	mustStatus(t, got, models.MatchStatusExpired)

	list, err := svc.ListMatches("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, lm := range list {
		if lm.Status == models.MatchStatusReady {
			t.Fatalf("expired match %s still listed as ready", lm.ID)
		}
	}
	if svc.Locks.HasActiveLock("alice") || svc.Locks.HasActiveLock("bob") {
		t.Fatal("locks survived expiry")
	}
}

func TestExpiredChallengeCannotBeAccepted(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 1)
	past := time.Now().Add(-time.Minute)
	svc.DB.Model(&models.Match{}).Where("id = ?", m.ID).
		Update("challenge_expires_at", past)

	if _, err := svc.Accept("bob", m.ID); err != ErrMatchExpired {
		t.Fatalf("accept err = %v, want ErrMatchExpired", err)
	}
	got, _ := svc.GetMatch("bob", m.ID)
	mustStatus(t, got, models.MatchStatusExpired)
}

func TestOnlyReceiverMayAccept(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Accept("alice", m.ID); err != ErrNotAuthorized {
		t.Fatalf("challenger accept err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Accept("mallory", m.ID); err != ErrNotAuthorized {
		t.Fatalf("outsider accept err = %v, want ErrNotAuthorized", err)
	}
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	got, err := svc.Cancel("bob", m.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mustStatus(t, got, models.MatchStatusCancelled)
	if got.EndedBy == nil || *got.EndedBy != "bob" {
		t.Fatalf("ended_by = %v, want bob", got.EndedBy)
	}

	if _, err := svc.Cancel("alice", m.ID); err != ErrInvalidStatus {
		t.Fatalf("cancel of terminal match err = %v, want ErrInvalidStatus", err)
	}
}

func TestAbortClearsLocks(t *testing.T) {
	svc := newTestService(t)

	m := startInProgress(t, svc, "alice", "bob")
	got, err := svc.Abort("bob", m.ID)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	mustStatus(t, got, models.MatchStatusCancelled)
	if got.EndedReason == nil || *got.EndedReason != "aborted" {
		t.Fatalf("ended_reason = %v, want aborted", got.EndedReason)
	}
	if svc.Locks.HasActiveLock("alice") || svc.Locks.HasActiveLock("bob") {
		t.Fatal("locks survived abort")
	}
}

func TestAbortRequiresJoinedState(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Abort("alice", m.ID); err != ErrInvalidStatus {
		t.Fatalf("abort of pending match err = %v, want ErrInvalidStatus", err)
	}
}

func TestOutsiderCannotFetch(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.GetMatch("mallory", m.ID); err != ErrNotAuthorized {
		t.Fatalf("outsider fetch err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.GetMatch("alice", "no-such-id"); err != ErrMatchNotFound {
		t.Fatalf("missing match err = %v, want ErrMatchNotFound", err)
	}
	if _, err := svc.GetMatch("", m.ID); err != ErrNotAuthenticated {
		t.Fatalf("anonymous fetch err = %v, want ErrNotAuthenticated", err)
	}
}

func TestCreateChallengeValidation(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateChallenge("alice", "alice", models.GameType501, 3); err != ErrNotAuthorized {
		t.Fatalf("self-challenge err = %v", err)
	}
	if _, err := svc.CreateChallenge("alice", "bob", "cricket", 3); err != ErrInvalidStatus {
		t.Fatalf("unknown game type err = %v", err)
	}
	if _, err := svc.CreateChallenge("alice", "bob", models.GameType501, 2); err != ErrInvalidStatus {
		t.Fatalf("even format err = %v", err)
	}
}

// startInProgress walks the full happy path to a live match.
func startInProgress(t *testing.T, svc *MatchService, challenger, receiver string) *models.Match {
	t.Helper()
	m, err := svc.CreateChallenge(challenger, receiver, models.GameType501, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(receiver, m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Join(challenger, m.ID); err != nil {
		t.Fatalf("first join: %v", err)
	}
	m2, err := svc.Join(receiver, m.ID)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	return m2
}
