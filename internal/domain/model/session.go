package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Group names.
const (
	GroupAll = "all"
	GroupA   = "A"
	GroupB   = "B"
)

// Group is a set of competitors climbing the same route sequence in queue order.
type Group struct {
	Name        string
	Routes      []string
	Competitors []*Competitor
}

// LastRoute returns the final route of the group, or "" for an empty sequence.
func (g *Group) LastRoute() string {
	if len(g.Routes) == 0 {
		return ""
	}
	return g.Routes[len(g.Routes)-1]
}

// Settings describe a contest to set up.
type Settings struct {
	Type         ContestType
	Routes       int
	PauseMinutes int
	Entrants     []Entrant
}

// Session is the contest aggregate. It is owned by a single goroutine; the
// engines receive it by pointer and never retain it.
type Session struct {
	ID           string
	Type         ContestType
	Routes       []string
	Groups       []*Group
	Competitors  []*Competitor
	Rotation     int
	Round        int
	Finished     bool
	PauseMinutes int
}

// RouteLabels returns T1..Tn.
func RouteLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "T" + strconv.Itoa(i+1)
	}
	return labels
}

// NewSession validates settings and builds a session in its initial state.
func NewSession(id string, s Settings) (*Session, error) {
	if s.Routes < 1 {
		return nil, fmt.Errorf("%w: route count must be positive", ErrInvalidInput)
	}
	if s.Type.Grouped() && s.Routes < 2 {
		return nil, fmt.Errorf("%w: qualifiers need at least two routes", ErrInvalidInput)
	}
	if s.Type.Rounds() > 1 && (s.PauseMinutes < 1 || s.PauseMinutes > 60) {
		return nil, fmt.Errorf("%w: pause must be within 1..60 minutes", ErrInvalidInput)
	}
	if !s.Type.Manual() && len(s.Entrants) == 0 {
		return nil, fmt.Errorf("%w: no competitors", ErrInvalidInput)
	}

	seen := make(map[string]bool, len(s.Entrants))
	competitors := make([]*Competitor, 0, len(s.Entrants))
	for _, e := range s.Entrants {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: competitor without a name", ErrInvalidInput)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate competitor %q", ErrInvalidInput, name)
		}
		seen[name] = true
		competitors = append(competitors, &Competitor{Name: name, Club: strings.TrimSpace(e.Club)})
	}

	sess := &Session{
		ID:           id,
		Type:         s.Type,
		Routes:       RouteLabels(s.Routes),
		Competitors:  competitors,
		Round:        1,
		PauseMinutes: s.PauseMinutes,
	}
	sess.buildGroups()
	return sess, nil
}

// buildGroups splits competitors and routes from arrival order. Group A takes
// the larger half of both on odd counts.
func (s *Session) buildGroups() {
	for _, c := range s.Competitors {
		c.ResetProgress()
	}
	if !s.Type.Grouped() {
		s.Groups = []*Group{{Name: GroupAll, Routes: s.Routes, Competitors: s.Competitors}}
		for _, c := range s.Competitors {
			c.Group = GroupAll
		}
		return
	}

	cs := (len(s.Competitors) + 1) / 2
	rs := (len(s.Routes) + 1) / 2
	a := &Group{Name: GroupA, Routes: s.Routes[:rs], Competitors: append([]*Competitor(nil), s.Competitors[:cs]...)}
	b := &Group{Name: GroupB, Routes: s.Routes[rs:], Competitors: append([]*Competitor(nil), s.Competitors[cs:]...)}
	s.Groups = []*Group{a, b}
	s.relabel()
}

func (s *Session) relabel() {
	for _, g := range s.Groups {
		for _, c := range g.Competitors {
			c.Group = g.Name
		}
	}
}

// Competitor looks a competitor up by name.
func (s *Session) Competitor(name string) (*Competitor, bool) {
	for _, c := range s.Competitors {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasRoute reports whether label is one of the contest routes.
func (s *Session) HasRoute(label string) bool {
	for _, r := range s.Routes {
		if r == label {
			return true
		}
	}
	return false
}

// AllFinished reports whether every competitor reached Finished. A session
// without competitors is never finished by rotation.
func (s *Session) AllFinished() bool {
	if len(s.Competitors) == 0 {
		return false
	}
	for _, c := range s.Competitors {
		if c.State.Kind != Finished {
			return false
		}
	}
	return true
}

// SwapGroups exchanges the competitor lists of the two groups so each group
// climbs the other's routes, and resets everyone's progress.
func (s *Session) SwapGroups() {
	if len(s.Groups) == 2 {
		s.Groups[0].Competitors, s.Groups[1].Competitors = s.Groups[1].Competitors, s.Groups[0].Competitors
		s.relabel()
	}
	for _, c := range s.Competitors {
		c.ResetProgress()
	}
	s.Rotation = 0
}

// Reset returns the session to its freshly set up state.
func (s *Session) Reset() {
	s.Rotation = 0
	s.Round = 1
	s.Finished = false
	s.buildGroups()
}

// CountByState returns how many competitors are in each displayed state kind.
func (s *Session) CountByState() map[string]int {
	counts := make(map[string]int, 4)
	for _, c := range s.Competitors {
		key := c.State.String()
		if c.State.Kind == OnRoute {
			key = "on_route"
		}
		counts[key]++
	}
	return counts
}
