package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// startCountdown replaces any running timer with a one second ticker that
// feeds tick messages into the inbox.
func (r *Room) startCountdown() {
	r.stopTimers()

	gen := r.gen
	ticker := r.clock.NewTicker(time.Second)
	ctx, cancel := context.WithCancel(r.ctx)
	r.ticker = ticker
	r.cancelTimer = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				select {
				case r.inbox <- tick{gen: gen}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// startIntermission schedules the next question after the configured pause
func (r *Room) startIntermission() {
	r.stopTimers()

	gen := r.gen
	timer := r.clock.NewTimer(r.cfg.Intermission)
	ctx, cancel := context.WithCancel(r.ctx)
	r.timer = timer
	r.cancelTimer = cancel

	go func() {
		select {
		case <-timer.Chan():
			select {
			case r.inbox <- intermissionDone{gen: gen}:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()

	log.Debug().
		Dur("intermission", r.cfg.Intermission).
		Msg("scheduled next question")
}

// stopTimers cancels the countdown or intermission. Bumping the generation
// makes any tick already queued in the inbox stale.
func (r *Room) stopTimers() {
	r.gen++
	if r.cancelTimer != nil {
		r.cancelTimer()
		r.cancelTimer = nil
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	if r.timer != nil {
		stopAndDrainTimer(r.timer)
		r.timer = nil
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
