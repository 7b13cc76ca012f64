// Package model contains the contest aggregate and the value types shared
// between the clock, the rotation engine and the scoring layer.
package model

import (
	"fmt"
	"strings"
)

// ContestType selects the rotation rules of a contest.
type ContestType string

// Supported contest types.
const (
	Qualifiers ContestType = "qualifiers"
	Semifinals ContestType = "semifinals"
	Finals     ContestType = "finals"
	CRB        ContestType = "crb"
)

// ParseContestType accepts the lower-case names above, case-insensitively.
func ParseContestType(s string) (ContestType, error) {
	switch t := ContestType(strings.ToLower(strings.TrimSpace(s))); t {
	case Qualifiers, Semifinals, Finals, CRB:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown contest type %q", ErrInvalidInput, s)
	}
}

// Dwell is the number of rotation boundaries a competitor spends per route,
// counting the isolation boundaries between routes.
func (t ContestType) Dwell() int {
	if t == Finals {
		return 4
	}
	return 2
}

// Rounds is the number of rounds the contest runs. Qualifiers climb a second
// round on the other group's routes after a pause.
func (t ContestType) Rounds() int {
	if t == Qualifiers {
		return 2
	}
	return 1
}

// HasPreview reports whether the round opens with the route preview phase.
func (t ContestType) HasPreview() bool {
	return t == Semifinals || t == Finals
}

// Grouped reports whether competitors and routes are split into two groups.
func (t ContestType) Grouped() bool {
	return t == Qualifiers
}

// Manual reports whether the clock runs a single manually set countdown
// without competitor rotation.
func (t ContestType) Manual() bool {
	return t == CRB
}
