package state

import (
	"errors"
	"sync"
	"testing"
)

func TestTransitions(t *testing.T) {
	m := &Manager{}

	if m.GetState() != Created {
		t.Fatalf("initial state should be Created, not %s", m.GetState())
	}

	for _, to := range []State{Bootstrapped, Started, Running, Stopped} {
		if _, ok := m.Transition(to); !ok {
			t.Fatalf("transition to %s refused from %s", to, m.GetState())
		}
	}

	for _, to := range []State{Created, Bootstrapped, Started, Running, Failed, Stopped} {
		if from, ok := m.Transition(to); ok || from != Stopped {
			t.Fatalf("Stopped should be terminal, moved to %s", to)
		}
	}
}

func TestStartRequiresBootstrap(t *testing.T) {
	m := &Manager{}

	if _, ok := m.Transition(Started); ok {
		t.Fatalf("Created -> Started should be refused")
	}
	if _, ok := m.Transition(Running); ok {
		t.Fatalf("Created -> Running should be refused")
	}
}

func TestFailIsSticky(t *testing.T) {
	m := &Manager{}
	m.Transition(Bootstrapped)

	first := errors.New("first")
	if !m.Fail(first) {
		t.Fatalf("Fail should move to Failed")
	}
	if m.Fail(errors.New("second")) {
		t.Fatalf("second Fail should not transition")
	}
	if m.Failure() != first {
		t.Fatalf("first failure should be kept, got %v", m.Failure())
	}

	for _, to := range []State{Started, Running, Bootstrapped} {
		if _, ok := m.Transition(to); ok {
			t.Fatalf("Failed -> %s should be refused", to)
		}
	}

	if _, ok := m.Transition(Stopped); !ok {
		t.Fatalf("Failed -> Stopped should be allowed")
	}
	if !m.HasFailed() {
		t.Fatalf("failure should outlive the Failed state")
	}
}

func TestConcurrentStop(t *testing.T) {
	m := &Manager{}
	m.Transition(Bootstrapped)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Transition(Stopped); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactly one goroutine should stop the session, got %d", wins)
	}
}

func TestString(t *testing.T) {
	if Running.String() != "Running" || State(42).String() != "Unknown" {
		t.Fatalf("unexpected String output")
	}
}
