package network

import (
	"sync"
	"time"
)

// Signal is a one-shot notification. Firing it more than once has no effect.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns a Signal which has not fired.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire fires the signal.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or timeout elapses. It returns whether
// the signal fired.
func (s *Signal) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}
