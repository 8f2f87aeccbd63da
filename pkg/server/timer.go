package server

import (
	"sync"
	"time"

	"github.com/decred/slog"
)

// TurnTimers arms, pauses, and cancels per-game turn timers. Timeout
// callbacks run on a timer goroutine and must re-enter the server through its
// public methods rather than touch state directly.
type TurnTimers struct {
	log   slog.Logger
	grace time.Duration

	mu     sync.Mutex
	timers map[string]*turnTimer
}

type turnTimer struct {
	playerID  string
	timer     *time.Timer
	deadline  time.Time
	paused    bool
	remaining time.Duration
	onTimeout func()
}

// NewTurnTimers creates the timer service. grace pads every armed duration so
// clients visibly time out before the server auto-acts.
func NewTurnTimers(log slog.Logger, grace time.Duration) *TurnTimers {
	return &TurnTimers{
		log:    log,
		grace:  grace,
		timers: make(map[string]*turnTimer),
	}
}

// StartTurn cancels any timer for gameID and arms a new one for
// timeoutSeconds plus the grace period.
func (t *TurnTimers) StartTurn(gameID, playerID string, timeoutSeconds int, onTimeout func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[gameID]; ok {
		stopTimer(existing)
		delete(t.timers, gameID)
	}

	d := time.Duration(timeoutSeconds)*time.Second + t.grace
	tt := &turnTimer{
		playerID:  playerID,
		deadline:  time.Now().Add(d),
		onTimeout: onTimeout,
	}
	tt.timer = time.AfterFunc(d, func() { t.fire(gameID, tt) })
	t.timers[gameID] = tt
	t.log.Tracef("armed turn timer for game %s player %s (%s)", gameID, playerID, d)
}

// fire runs the timeout callback if the timer is still the active one.
func (t *TurnTimers) fire(gameID string, tt *turnTimer) {
	t.mu.Lock()
	current, ok := t.timers[gameID]
	if !ok || current != tt || tt.paused {
		t.mu.Unlock()
		return
	}
	delete(t.timers, gameID)
	cb := tt.onTimeout
	t.mu.Unlock()

	t.log.Debugf("turn timer fired for game %s player %s", gameID, tt.playerID)
	if cb != nil {
		cb()
	}
}

// CancelTurn clears the timer for gameID. Cancelling an absent timer is a
// no-op, so the call is idempotent.
func (t *TurnTimers) CancelTurn(gameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tt, ok := t.timers[gameID]; ok {
		stopTimer(tt)
		delete(t.timers, gameID)
	}
}

// PauseTurn records the remaining duration and tears down the underlying
// timer. Pausing an absent or already paused timer is a no-op.
func (t *TurnTimers) PauseTurn(gameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.timers[gameID]
	if !ok || tt.paused {
		return
	}
	stopTimer(tt)
	tt.paused = true
	tt.remaining = time.Until(tt.deadline)
	t.log.Tracef("paused turn timer for game %s, %s remaining", gameID, tt.remaining)
}

// ResumeTurn rearms a paused timer for exactly the remaining duration. When
// nothing remains the timeout fires immediately on its own goroutine.
func (t *TurnTimers) ResumeTurn(gameID string) {
	t.mu.Lock()

	tt, ok := t.timers[gameID]
	if !ok || !tt.paused {
		t.mu.Unlock()
		return
	}
	tt.paused = false

	if tt.remaining <= 0 {
		delete(t.timers, gameID)
		cb := tt.onTimeout
		t.mu.Unlock()
		if cb != nil {
			go cb()
		}
		return
	}

	tt.deadline = time.Now().Add(tt.remaining)
	tt.timer = time.AfterFunc(tt.remaining, func() { t.fire(gameID, tt) })
	t.mu.Unlock()
}

// Remaining reports the time left on a timer. ok is false when no timer is
// armed for gameID.
func (t *TurnTimers) Remaining(gameID string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.timers[gameID]
	if !ok {
		return 0, false
	}
	if tt.paused {
		return tt.remaining, true
	}
	return time.Until(tt.deadline), true
}

func stopTimer(tt *turnTimer) {
	if tt.timer != nil {
		tt.timer.Stop()
	}
}
