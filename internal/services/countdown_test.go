package services

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestRegistry(t *testing.T, tick time.Duration) *CountdownRegistry {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	r := NewCountdownRegistry(nil, log)
	r.SetTickInterval(tick)
	return r
}

func TestEnsureIsIdempotentForSameQuestion(t *testing.T) {
	r := newTestRegistry(t, 10*time.Millisecond)

	r.Ensure("s1", 0, 100)
	time.Sleep(60 * time.Millisecond)

	rem := r.Ensure("s1", 0, 100)
	if rem >= 100 {
		t.Fatalf("remaining = %d, Ensure restarted the countdown", rem)
	}

	idx, rem2, ok := r.Remaining("s1")
	if !ok || idx != 0 {
		t.Fatalf("Remaining = (%d, %d, %v), want active question 0", idx, rem2, ok)
	}
}

func TestEnsureReplacesStaleQuestionTimer(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	r.Ensure("s1", 0, 20)
	rem := r.Ensure("s1", 1, 60)
	if rem != 60 {
		t.Fatalf("remaining = %d, want a fresh 60 for the new question", rem)
	}

	idx, _, ok := r.Remaining("s1")
	if !ok || idx != 1 {
		t.Fatalf("active question = %d, want 1", idx)
	}
}

func TestExpiryFiresCallbackOnce(t *testing.T) {
	r := newTestRegistry(t, time.Millisecond)

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	r.OnExpire(func(sessionID string, questionIndex int) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if sessionID != "s1" || questionIndex != 2 {
			t.Errorf("callback got (%q, %d), want (s1, 2)", sessionID, questionIndex)
		}
		if n == 1 {
			close(done)
		}
	})

	r.Ensure("s1", 2, 3)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}

	// no second fire, and the timer is gone
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Fatalf("callback fired %d times, want 1", n)
	}
	if _, _, ok := r.Remaining("s1"); ok {
		t.Fatal("expired timer still registered")
	}
}

func TestStopPreventsExpiry(t *testing.T) {
	r := newTestRegistry(t, time.Millisecond)

	fired := make(chan struct{}, 1)
	r.OnExpire(func(string, int) { fired <- struct{}{} })

	r.Ensure("s1", 0, 5)
	r.Stop("s1")

	select {
	case <-fired:
		t.Fatal("callback fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}

	if _, _, ok := r.Remaining("s1"); ok {
		t.Fatal("stopped timer still registered")
	}
}

func TestPauseSavesRemainingForResume(t *testing.T) {
	r := newTestRegistry(t, 10*time.Millisecond)

	r.Ensure("s1", 0, 100)
	time.Sleep(60 * time.Millisecond)
	r.Pause("s1")

	if _, _, ok := r.Remaining("s1"); ok {
		t.Fatal("countdown still ticking after Pause")
	}

	rem := r.Ensure("s1", 0, 100)
	if rem >= 100 {
		t.Fatalf("remaining = %d, resume restarted from the full limit", rem)
	}
	r.Stop("s1")
}

func TestPauseIsDiscardedForALaterQuestion(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	r.Ensure("s1", 0, 20)
	r.Pause("s1")

	// the session moved on while detached; question 1 gets a fresh clock
	rem := r.Ensure("s1", 1, 60)
	if rem != 60 {
		t.Fatalf("remaining = %d, want a fresh 60", rem)
	}
	r.Stop("s1")
}

func TestStopDiscardsPausedClock(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	r.Ensure("s1", 0, 20)
	r.Pause("s1")
	r.Stop("s1")

	rem := r.Ensure("s1", 0, 20)
	if rem != 20 {
		t.Fatalf("remaining = %d, want the full 20 after Stop", rem)
	}
	r.Stop("s1")
}

func TestPauseWithoutTimerIsNoop(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	r.Pause("s1")
	if _, _, ok := r.Remaining("s1"); ok {
		t.Fatal("Pause registered a timer")
	}
}

func TestIndependentSessions(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	r.Ensure("s1", 0, 20)
	r.Ensure("s2", 3, 120)
	r.Stop("s1")

	if _, _, ok := r.Remaining("s1"); ok {
		t.Fatal("s1 still registered after Stop")
	}
	idx, rem, ok := r.Remaining("s2")
	if !ok || idx != 3 || rem != 120 {
		t.Fatalf("s2 = (%d, %d, %v), want (3, 120, true)", idx, rem, ok)
	}
}
