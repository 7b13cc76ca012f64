// Package types contains the read-side shapes shared by the host service,
// the HTTP API and the display feeds.
package types

import "time"

// Entry is one row of the ranking.
type Entry struct {
	Rank       int     `json:"rank"`
	Competitor string  `json:"competitor"`
	Club       string  `json:"club"`
	Total      float64 `json:"total"`
}

// ClockView is the displayed clock.
type ClockView struct {
	Remaining        int    `json:"remaining"`
	Display          string `json:"display"`
	Phase            string `json:"phase"`
	Running          bool   `json:"running"`
	ManuallyAdjusted bool   `json:"manually_adjusted"`
}

// CompetitorView is one competitor as displays show it. Scores holds only
// attempted routes; an absent key is distinct from a zero score.
type CompetitorView struct {
	Name    string             `json:"name"`
	Club    string             `json:"club"`
	Group   string             `json:"group"`
	State   string             `json:"state"`
	Transit bool               `json:"transit"`
	Scores  map[string]float64 `json:"scores"`
	Total   float64            `json:"total"`
}

// GroupView lists a group's routes and queue. Next previews the upcoming
// call-zone competitors.
type GroupView struct {
	Name        string   `json:"name"`
	Routes      []string `json:"routes"`
	Competitors []string `json:"competitors"`
	Next        []string `json:"next"`
}

// View is an immutable snapshot of the contest.
type View struct {
	Version     uint64           `json:"version"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Configured  bool             `json:"configured"`
	Session     string           `json:"session,omitempty"`
	Type        string           `json:"type,omitempty"`
	Round       int              `json:"round"`
	Rotation    int              `json:"rotation"`
	Finished    bool             `json:"finished"`
	Clock       ClockView        `json:"clock"`
	Routes      []string         `json:"routes"`
	Groups      []GroupView      `json:"groups"`
	Competitors []CompetitorView `json:"competitors"`
	Ranking     []Entry          `json:"ranking"`
}

// Message types pushed to display feeds.
const (
	MessageState = "state"
	MessageAlert = "alert"
)

// Message is the envelope pushed to display feeds.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Alert asks displays for an audible signal.
type Alert struct {
	DurationMS int64     `json:"duration_ms"`
	Remaining  int       `json:"remaining"`
	Phase      string    `json:"phase"`
	At         time.Time `json:"at"`
}
