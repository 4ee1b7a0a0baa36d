package client

import "testing"

func TestFlowGateReentrantDepth(t *testing.T) {
	g := NewFlowGate()

	g.Enter("m1")
	g.Enter("m1") // nested sub-screen of the same match
	g.Exit()

	if id, ok := g.Focused(); !ok || id != "m1" {
		t.Fatalf("focus lost after nested exit: %q %v", id, ok)
	}
	if !g.AllowMatchRefetch("m1") {
		t.Fatal("focused refetch blocked while still inside the match")
	}

	g.Exit()
	if _, ok := g.Focused(); ok {
		t.Fatal("focus retained after matching exits")
	}
	if !g.AllowListReload() {
		t.Fatal("list reload blocked with no focus")
	}
}

func TestFlowGateScopesRefetchToFocusedMatch(t *testing.T) {
	g := NewFlowGate()

	if g.AllowMatchRefetch("m1") {
		t.Fatal("refetch allowed with no focus")
	}

	g.Enter("m1")
	if g.AllowListReload() {
		t.Fatal("list reload allowed behind an active match screen")
	}
	if g.AllowMatchRefetch("m2") {
		t.Fatal("refetch allowed for a non-focused match")
	}
	if !g.AllowMatchRefetch("m1") {
		t.Fatal("refetch blocked for the focused match")
	}
}

func TestFlowGateExtraExitIsHarmless(t *testing.T) {
	g := NewFlowGate()
	g.Exit() // never entered
	g.Enter("m1")
	g.Exit()
	g.Exit()
	if !g.AllowListReload() {
		t.Fatal("gate wedged by unbalanced exits")
	}
}
