package model

import (
	"fmt"
	"time"
)

// Kind enumerates the places a competitor can be during a round.
type Kind int

// Competitor state kinds.
const (
	CallZone Kind = iota
	Isolation
	OnRoute
	Finished
)

// State is where a competitor currently is. Route is set only for OnRoute.
type State struct {
	Kind  Kind
	Route string
}

// RouteState returns the state of a competitor climbing route label.
func RouteState(label string) State { return State{Kind: OnRoute, Route: label} }

// String renders the state the way displays and exports show it.
func (s State) String() string {
	switch s.Kind {
	case CallZone:
		return "call_zone"
	case Isolation:
		return "isolation"
	case OnRoute:
		return s.Route
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("kind(%d)", int(s.Kind))
	}
}

// MarshalText encodes the state as its display string.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// On reports whether the state is the given route.
func (s State) On(route string) bool {
	return s.Kind == OnRoute && s.Route == route
}

// Entrant is one roster row.
type Entrant struct {
	Name string `json:"name"`
	Club string `json:"club"`
}

// Competitor is a roster entrant together with its live progression.
type Competitor struct {
	Name  string
	Club  string
	Group string
	State State
	// Transit is set while the competitor walks off a route between rounds
	// of the clock.
	Transit bool
	// StartRotation is the rotation counter value at which the competitor
	// entered the route sequence; nil until started.
	StartRotation *int
}

// Started reports whether the competitor has entered the route sequence.
func (c *Competitor) Started() bool { return c.StartRotation != nil }

// Start records the rotation at which the competitor enters the sequence.
func (c *Competitor) Start(rotation int) {
	r := rotation
	c.StartRotation = &r
}

// ResetProgress returns the competitor to the call zone.
func (c *Competitor) ResetProgress() {
	c.State = State{Kind: CallZone}
	c.Transit = false
	c.StartRotation = nil
}

// ScoreEntry is one recorded result of a competitor on a route. A missing
// entry means the route has not been attempted.
type ScoreEntry struct {
	Session    string
	Competitor string
	Route      string
	Score      float64
	RecordedAt time.Time
}
