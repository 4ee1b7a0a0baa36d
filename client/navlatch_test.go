package client

import "testing"

func TestNavigationLatchFiresExactlyOnce(t *testing.T) {
	l := NewNavigationLatch()

	if !l.TryNavigate("m1") {
		t.Fatal("first trigger did not fire")
	}
	for i := 0; i < 3; i++ {
		if l.TryNavigate("m1") {
			t.Fatal("redelivered trigger fired again")
		}
	}

	// Another match is latched independently.
	if !l.TryNavigate("m2") {
		t.Fatal("unrelated match blocked")
	}

	l.Clear("m1")
	if !l.TryNavigate("m1") {
		t.Fatal("latch not released by Clear")
	}
}
