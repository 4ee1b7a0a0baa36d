package client

import "sync"

// FlowGate tracks whether the user is inside a match screen. While focused,
// background list reloads are suppressed and only refetches for the focused
// match proceed. The depth counter is reentrant so nested sub-screens of the
// same match do not prematurely un-focus it.
type FlowGate struct {
	mu      sync.Mutex
	depth   int
	focused string
}

func NewFlowGate() *FlowGate {
	return &FlowGate{}
}

func (g *FlowGate) Enter(matchID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.depth++
	g.focused = matchID
}

func (g *FlowGate) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth > 0 {
		g.depth--
	}
	if g.depth == 0 {
		g.focused = ""
	}
}

// AllowListReload reports whether a background list reconciliation may run.
func (g *FlowGate) AllowListReload() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth == 0
}

// AllowMatchRefetch reports whether a focused-match reconciliation for the
// given id may run.
func (g *FlowGate) AllowMatchRefetch(matchID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth > 0 && matchID == g.focused
}

// Focused returns the focused match id while the gate is held.
func (g *FlowGate) Focused() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.focused, g.depth > 0
}
