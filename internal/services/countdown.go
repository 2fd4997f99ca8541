package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TimerExpiredFunc is invoked once when a question's countdown reaches
// zero. It runs on the timer goroutine.
type TimerExpiredFunc func(sessionID string, questionIndex int)

// CountdownRegistry owns at most one ticking countdown per session.
// Ticks are published to `session:<id>:timer` so the WS bridge can
// forward remaining seconds to the client; expiry triggers the
// auto-submit callback.
type CountdownRegistry struct {
	mu     sync.Mutex
	timers map[string]*countdown
	paused map[string]pausedCountdown

	rdb  *redis.Client // nil disables publishing (tests)
	log  *logrus.Logger
	tick time.Duration

	onExpire TimerExpiredFunc
}

// pausedCountdown holds the clock of a detached session so a later
// Ensure for the same question resumes where it left off.
type pausedCountdown struct {
	questionIndex int
	remaining     int
}

type countdown struct {
	sessionID     string
	questionIndex int
	remaining     int

	cancel   chan struct{}
	stopOnce sync.Once
}

func (t *countdown) stop() {
	t.stopOnce.Do(func() { close(t.cancel) })
}

func NewCountdownRegistry(rdb *redis.Client, log *logrus.Logger) *CountdownRegistry {
	if log == nil {
		log = logrus.New()
	}
	return &CountdownRegistry{
		timers: make(map[string]*countdown),
		paused: make(map[string]pausedCountdown),
		rdb:    rdb,
		log:    log,
		tick:   time.Second,
	}
}

// SetTickInterval overrides the one-second tick. Tests only.
func (r *CountdownRegistry) SetTickInterval(d time.Duration) {
	if d > 0 {
		r.tick = d
	}
}

func (r *CountdownRegistry) OnExpire(fn TimerExpiredFunc) { r.onExpire = fn }

// Ensure starts a countdown for the given question unless the same one is
// already ticking, and returns the remaining seconds. A leftover timer
// for an earlier question of the same session is replaced. This is what
// makes a client re-render safe: it never doubles the timer.
func (r *CountdownRegistry) Ensure(sessionID string, questionIndex, seconds int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[sessionID]; ok {
		if t.questionIndex == questionIndex {
			return t.remaining
		}
		t.stop()
	}

	// a paused clock for the same question resumes with its saved time
	if p, ok := r.paused[sessionID]; ok {
		delete(r.paused, sessionID)
		if p.questionIndex == questionIndex && p.remaining > 0 && p.remaining <= seconds {
			seconds = p.remaining
		}
	}

	t := &countdown{
		sessionID:     sessionID,
		questionIndex: questionIndex,
		remaining:     seconds,
		cancel:        make(chan struct{}),
	}
	r.timers[sessionID] = t
	go r.run(t)
	return seconds
}

// Stop cancels the session's countdown if one is ticking and discards
// any paused clock. Idempotent.
func (r *CountdownRegistry) Stop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[sessionID]; ok {
		t.stop()
		delete(r.timers, sessionID)
	}
	delete(r.paused, sessionID)
}

// Pause halts the session's countdown and saves the remaining time, so
// the clock only runs while a client is attached. No-op when nothing is
// ticking.
func (r *CountdownRegistry) Pause(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[sessionID]
	if !ok {
		return
	}
	t.stop()
	delete(r.timers, sessionID)
	r.paused[sessionID] = pausedCountdown{
		questionIndex: t.questionIndex,
		remaining:     t.remaining,
	}
}

// Remaining reports the active countdown for a session, if any.
func (r *CountdownRegistry) Remaining(sessionID string) (questionIndex, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, found := r.timers[sessionID]
	if !found {
		return 0, 0, false
	}
	return t.questionIndex, t.remaining, true
}

func (r *CountdownRegistry) run(t *countdown) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.cancel:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.timers[t.sessionID] != t {
				// replaced or stopped between ticks
				r.mu.Unlock()
				return
			}
			t.remaining--
			rem := t.remaining
			if rem <= 0 {
				delete(r.timers, t.sessionID)
			}
			r.mu.Unlock()

			if rem > 0 {
				r.publish(t.sessionID, map[string]any{
					"type":           "timer_tick",
					"question_index": t.questionIndex,
					"remaining":      rem,
				})
				continue
			}

			r.publish(t.sessionID, map[string]any{
				"type":           "timer_expired",
				"question_index": t.questionIndex,
			})
			if r.onExpire != nil {
				r.onExpire(t.sessionID, t.questionIndex)
			}
			return
		}
	}
}

func (r *CountdownRegistry) publish(sessionID string, payload any) {
	if r.rdb == nil {
		return
	}
	b, _ := json.Marshal(payload)
	if err := r.rdb.Publish(context.Background(), "session:"+sessionID+":timer", b).Err(); err != nil {
		r.log.WithError(err).WithField("session_id", sessionID).Warn("timer publish failed")
	}
}
