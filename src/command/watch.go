package command

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// LinePredicate decides whether an output line is significant.
type LinePredicate func(line string) bool

// ContainsMarker matches lines containing marker. An empty marker matches
// nothing.
func ContainsMarker(marker string) LinePredicate {
	return func(line string) bool {
		return marker != "" && strings.Contains(line, marker)
	}
}

// Watcher interrupts a command on the first output line matching its
// predicate.
type Watcher struct {
	sync.Mutex
	line    string
	matched bool
}

// Watch subscribes a Watcher to c. It must be called before or during
// execution; lines produced before the call are not inspected.
func Watch(c *Command, p LinePredicate) *Watcher {
	w := &Watcher{}

	c.Subscribe(func(line string) {
		if !p(line) {
			return
		}

		w.Lock()
		first := !w.matched
		if first {
			w.matched = true
			w.line = line
		}
		w.Unlock()

		if first {
			c.logger.WithField("line", line).Error("Failure reported in output")
			c.Interrupt()
		}
	})

	return w
}

// Matched returns the first matching line, if any.
func (w *Watcher) Matched() (string, bool) {
	w.Lock()
	defer w.Unlock()
	return w.line, w.matched
}

// RunWatched runs c to completion, interrupting it on the first line matching
// p. A matching line is a failure even if the process then exits cleanly.
func RunWatched(c *Command, p LinePredicate) error {
	w := Watch(c, p)

	err := c.Run()

	if line, ok := w.Matched(); ok {
		return fmt.Errorf("%w: %s reported %q", ErrCommandFailed, c.program, line)
	}

	return err
}

// Expect returns a channel closed on the first output line matching p.
func Expect(c *Command, p LinePredicate) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once

	c.Subscribe(func(line string) {
		if p(line) {
			once.Do(func() { close(ch) })
		}
	})

	return ch
}

// AwaitLine blocks until ready is closed, the command exits or timeout
// elapses. It returns true only in the first case.
func AwaitLine(c *Command, ready <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return true
	case <-c.Done():
		// the line may have been the last one before exit
		select {
		case <-ready:
			return true
		default:
			return false
		}
	case <-timer.C:
		return false
	}
}
