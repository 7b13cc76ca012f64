package queue

import (
	"strconv"
	"time"
)

// Kind names a contest command.
type Kind int

// Command kinds, one per contest mutation.
const (
	KindTick Kind = iota
	KindSetup
	KindStart
	KindStartAt
	KindPause
	KindResume
	KindAdjust
	KindManualTime
	KindReset
	KindRecordScore
)

var kindNames = [...]string{
	"tick", "setup", "start", "start_at", "pause", "resume",
	"adjust", "manual_time", "reset", "record_score",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Reply carries the outcome of a command back to its submitter.
type Reply struct {
	Value any
	Err   error
}

// Command is one unit of work for the contest loop. Payload holds the
// kind-specific arguments. Done, when set, must have room for one Reply.
type Command struct {
	Kind       Kind
	Token      uint64
	Payload    any
	Done       chan Reply
	EnqueuedAt time.Time
}

// NewCommand returns a command with a reply channel.
func NewCommand(kind Kind, payload any) Command {
	return Command{Kind: kind, Payload: payload, Done: make(chan Reply, 1), EnqueuedAt: time.Now()}
}

// Tick returns the fire-and-forget command delivering a clock token.
func Tick(token uint64) Command {
	return Command{Kind: KindTick, Token: token, EnqueuedAt: time.Now()}
}
