package daemon

import "testing"

func TestRegisterSupersedesExistingTurn(t *testing.T) {
	at := newActiveTurns()
	cancelled1 := false

	superseded := at.register("s1", "tok1", func() { cancelled1 = true })
	if superseded {
		t.Fatal("first register should not report a superseded prior turn")
	}

	superseded = at.register("s1", "tok2", func() {})
	if !superseded {
		t.Fatal("second register for the same session should supersede the first")
	}
	if !cancelled1 {
		t.Fatal("expected the first turn's cancel to be invoked on supersede")
	}
}

func TestFinishOnlyRemovesMatchingToken(t *testing.T) {
	at := newActiveTurns()
	at.register("s1", "tok1", func() {})
	at.register("s1", "tok2", func() {}) // supersedes tok1

	// A late finish from the superseded tok1 must not remove tok2's entry.
	at.finish("s1", "tok1")
	if len(at.ids()) != 1 {
		t.Fatalf("ids = %v, want s1 still active under tok2", at.ids())
	}

	at.finish("s1", "tok2")
	if len(at.ids()) != 0 {
		t.Fatalf("ids = %v, want empty after the current token finishes", at.ids())
	}
}

func TestCancelIdempotentOnIdleSession(t *testing.T) {
	at := newActiveTurns()
	if at.cancel("idle") {
		t.Fatal("expected cancel on an idle session to report no active turn")
	}
}

func TestCancelRemovesAndInvokesCancelFunc(t *testing.T) {
	at := newActiveTurns()
	called := false
	at.register("s1", "tok1", func() { called = true })

	if !at.cancel("s1") {
		t.Fatal("expected cancel to report an active turn was present")
	}
	if !called {
		t.Fatal("expected the cancel func to be invoked")
	}
	if len(at.ids()) != 0 {
		t.Fatal("expected the entry to be removed")
	}
}

func TestAbortAllClearsEverySession(t *testing.T) {
	at := newActiveTurns()
	at.register("s1", "t1", func() {})
	at.register("s2", "t2", func() {})

	at.abortAll()
	if len(at.ids()) != 0 {
		t.Fatalf("ids = %v, want none after abortAll", at.ids())
	}
}
