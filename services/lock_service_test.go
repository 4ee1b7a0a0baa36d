package services

import (
	"testing"

	"darts-match-service/models"

	"github.com/google/uuid"
)

func TestLockReadFailsOpen(t *testing.T) {
	svc := newTestService(t)

	// No rows at all: the user is free.
	if svc.Locks.HasActiveLock("alice") {
		t.Fatal("empty lock table reported a lock")
	}
}

func TestLockExcludesOwnMatch(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Accept("bob", m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if !svc.Locks.HasActiveLock("bob") {
		t.Fatal("no lock after accept")
	}
	if svc.Locks.HasActiveLockExcluding("bob", m.ID) {
		t.Fatal("own-match lock counted as a second commitment")
	}
}

func TestClearOrphansRemovesTerminalAndDangling(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Accept("bob", m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Simulate the partial-failure window: the match ends without its lock
	// cleanup having run.
	svc.DB.Model(&models.Match{}).Where("id = ?", m.ID).
		Update("status", models.MatchStatusCancelled)

	// And one lock whose match vanished entirely.
	dangling := models.MatchLock{
		ID:         uuid.NewString(),
		UserID:     "carol",
		MatchID:    uuid.NewString(),
		LockStatus: models.LockStatusCommitted,
	}
	if err := svc.DB.Create(&dangling).Error; err != nil {
		t.Fatalf("seed dangling lock: %v", err)
	}

	removed, err := svc.Locks.ClearOrphans()
	if err != nil {
		t.Fatalf("clear orphans: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	for _, user := range []string{"alice", "bob", "carol"} {
		if svc.Locks.HasActiveLock(user) {
			t.Fatalf("orphaned lock for %s survived", user)
		}
	}
}

func TestJoinedCountTracksMembership(t *testing.T) {
	svc := newTestService(t)

	m, _ := svc.CreateChallenge("alice", "bob", models.GameType501, 3)
	if _, err := svc.Accept("bob", m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if n, _ := svc.Locks.JoinedCount(m.ID); n != 0 {
		t.Fatalf("joined count = %d before any join", n)
	}
	if _, err := svc.Join("alice", m.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if n, _ := svc.Locks.JoinedCount(m.ID); n != 1 {
		t.Fatalf("joined count = %d, want 1", n)
	}
}
