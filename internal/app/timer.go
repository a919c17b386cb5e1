package app

import (
	"context"
	"time"

	"quizdeck/internal/domain"
)

// StartTimer launches the countdown loop. It is a no-op for untimed, finished,
// closed or already running attempts.
func (a *Attempt) StartTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.budget == 0 || a.phase != domain.PhaseInProgress || a.closed || a.stopTimer != nil {
		return
	}
	a.timerOn = true
	a.startTimerLocked()
}

// Close tears the attempt down: the countdown stops and subscribers are released.
// The checkpoint is kept so the attempt can be resumed later.
func (a *Attempt) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

// acquire registers one more holder of a live attempt. It fails once the attempt is closed.
func (a *Attempt) acquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.holders++
	return true
}

// release drops one holder and closes the attempt when the last one leaves.
// It reports whether the attempt is closed afterwards.
func (a *Attempt) release() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holders > 0 {
		a.holders--
	}
	if a.holders == 0 {
		a.closeLocked()
	}
	return a.closed
}

func (a *Attempt) closeLocked() {
	if a.closed {
		return
	}
	a.closed = true
	a.stopTimerLocked()
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

// Closed reports whether Close was called.
func (a *Attempt) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Attempt) startTimerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopTimer = cancel
	ticks, stop := a.ticker()
	go a.runTimer(ctx, ticks, stop)
}

func (a *Attempt) stopTimerLocked() {
	if a.stopTimer != nil {
		a.stopTimer()
		a.stopTimer = nil
	}
}

// runTimer owns one countdown generation. Cancellation happens under a.mu, so a
// tick that races with submit, retry or close is dropped after the lock is taken.
func (a *Attempt) runTimer(ctx context.Context, ticks <-chan time.Time, stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			a.mu.Lock()
			if ctx.Err() != nil {
				a.mu.Unlock()
				return
			}
			remaining := a.tickLocked(ctx)
			done := remaining == 0 || a.phase != domain.PhaseInProgress
			a.mu.Unlock()
			if done {
				return
			}
		}
	}
}

// Subscribe returns a channel of attempt events (ticks, submission, reset).
// The caller must invoke the returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan domain.AttemptEvent, func()) {
	ch := make(chan domain.AttemptEvent, 16)

	a.mu.Lock()
	if a.closed {
		close(ch)
		a.mu.Unlock()
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked(event domain.AttemptEvent) {
	for ch := range a.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest event so the attempt never blocks.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
