package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/belay/internal/domain/model"
)

// Phase is a segment of the countdown.
type Phase int

// Clock phases. Idle covers both "not started" and a pending timed start.
const (
	Idle Phase = iota
	Preview
	ActiveRound
	Transit
	Pause
	Stopped
)

var phaseNames = [...]string{"idle", "preview", "active_round", "transit", "pause", "stopped"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
	return phaseNames[p]
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Durations are the nominal lengths of each phase.
type Durations struct {
	Preview     time.Duration
	ActiveRound time.Duration
	Transit     time.Duration
	Pause       time.Duration
}

// DefaultDurations returns the standard boulder timings.
func DefaultDurations() Durations {
	return Durations{
		Preview:     480 * time.Second,
		ActiveRound: 240 * time.Second,
		Transit:     15 * time.Second,
		Pause:       90 * time.Second,
	}
}

// State is a point-in-time reading of the clock.
type State struct {
	Remaining        int   `json:"remaining"`
	Phase            Phase `json:"phase"`
	Running          bool  `json:"running"`
	ManuallyAdjusted bool  `json:"manually_adjusted"`
}

// Display formats the remaining time as MM:SS.
func (s State) Display() string {
	return fmt.Sprintf("%02d:%02d", s.Remaining/60, s.Remaining%60)
}

// ParseDuration parses an MM:SS countdown value into seconds.
func ParseDuration(s string) (int, error) {
	mm, ss, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: duration %q is not MM:SS", model.ErrInvalidInput, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: bad minutes in %q", model.ErrInvalidInput, s)
	}
	sec, err := strconv.Atoi(ss)
	if err != nil || sec < 0 || sec > 59 || len(ss) != 2 {
		return 0, fmt.Errorf("%w: bad seconds in %q", model.ErrInvalidInput, s)
	}
	return m*60 + sec, nil
}

// NextAt resolves an hh:mm:ss wall-clock time on now's day. Times that are
// not strictly after now are rejected.
func NextAt(now time.Time, hhmmss string) (time.Time, error) {
	t, err := time.ParseInLocation(time.TimeOnly, strings.TrimSpace(hhmmss), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start time %q is not hh:mm:ss", model.ErrInvalidInput, hhmmss)
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: start time %s is in the past", model.ErrInvalidInput, hhmmss)
	}
	return at, nil
}
