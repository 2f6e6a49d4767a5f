package network

import (
	"sync"
	"testing"
	"time"
)

func TestSignalFiresOnce(t *testing.T) {
	s := NewSignal()
	if s.Fired() {
		t.Fatal("new signal should not have fired")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Fire()
		}()
	}
	wg.Wait()

	if !s.Fired() {
		t.Fatal("signal should have fired")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestSignalWait(t *testing.T) {
	s := NewSignal()

	start := time.Now()
	if s.Wait(100 * time.Millisecond) {
		t.Fatal("Wait should time out")
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Fatal("Wait returned before its timeout")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Fire()
	}()

	start = time.Now()
	if !s.Wait(10 * time.Second) {
		t.Fatal("Wait should report the signal")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Wait did not return promptly")
	}
}
