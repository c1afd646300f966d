// Package report wraps a FindingSet with scan metadata and renders it for
// terminals and downstream tooling.
package report

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/user/sysguard/pkg/engine"
)

var hostname = os.Hostname

// Report is one scan's FindingSet plus the volatile data that must stay out
// of the FindingSet itself.
type Report struct {
	ID        string             `json:"id" yaml:"id"`
	Host      string             `json:"host" yaml:"host"`
	StartedAt time.Time          `json:"started_at" yaml:"started_at"`
	Duration  string             `json:"duration" yaml:"duration"`
	Summary   engine.Tally       `json:"summary" yaml:"summary"`
	Findings  *engine.FindingSet `json:"findings" yaml:"findings"`
}

// New stamps findings with a fresh scan ID and the local hostname.
func New(findings *engine.FindingSet, started time.Time, elapsed time.Duration) *Report {
	host, err := hostname()
	if err != nil {
		host = "unknown"
	}
	return &Report{
		ID:        uuid.NewString(),
		Host:      host,
		StartedAt: started.UTC(),
		Duration:  elapsed.Round(time.Millisecond).String(),
		Summary:   findings.Tally(),
		Findings:  findings,
	}
}

// Row is one populated report location.
type Row struct {
	Key  string
	Text string
}

// Section groups the rows a single check owns.
type Section struct {
	ID    string
	Title string
	Rows  []Row
}

// Sections lays the findings out in catalogue order, one section per check.
func (r *Report) Sections(cat *engine.Catalogue) []Section {
	checks := cat.Checks()
	sections := make([]Section, 0, len(checks))
	for _, chk := range checks {
		sec := Section{ID: chk.ID(), Title: chk.Title()}
		for _, key := range chk.Keys() {
			sec.Rows = append(sec.Rows, Row{Key: key, Text: r.Findings.Get(key)})
		}
		sections = append(sections, sec)
	}
	return sections
}
