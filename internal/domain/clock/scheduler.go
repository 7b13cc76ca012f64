package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cancel stops a scheduled tick. Calling it more than once is safe.
type Cancel func()

// Scheduler delivers a token back to the clock owner after a delay.
// Delivery must happen on the goroutine that owns the Clock.
type Scheduler interface {
	Schedule(delay time.Duration, token uint64) Cancel
}

// TimerScheduler schedules one-shot timers on a clockwork clock and hands the
// token to deliver when they fire.
type TimerScheduler struct {
	clock   clockwork.Clock
	deliver func(token uint64)
}

// NewTimerScheduler returns a scheduler on clk. deliver is called from the
// timer goroutine and must forward the token to the clock owner.
func NewTimerScheduler(clk clockwork.Clock, deliver func(token uint64)) *TimerScheduler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &TimerScheduler{clock: clk, deliver: deliver}
}

// Schedule starts a one-shot timer for token. A delivery racing with cancel
// is possible; the clock discards it by token.
func (s *TimerScheduler) Schedule(delay time.Duration, token uint64) Cancel {
	t := s.clock.NewTimer(delay)
	stop := make(chan struct{})
	go func() {
		select {
		case <-t.Chan():
			s.deliver(token)
		case <-stop:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			stopAndDrainTimer(t)
			close(stop)
		})
	}
}

// stopAndDrainTimer stops t and empties its channel if it already fired.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
