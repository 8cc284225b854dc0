package report

import (
	"fmt"

	"github.com/unarc/unarc/internal/engine"
	"github.com/unarc/unarc/internal/scanner"
)

// Item pairs one discovered archive with its terminal outcome.
type Item struct {
	Entry   scanner.Entry
	Outcome engine.Outcome
}

// Report accumulates outcomes in scan order. It is appended to only by the
// orchestrator and becomes read-only once finalized.
type Report struct {
	items     []Item
	warnings  []scanner.Warning
	finalized bool
}

func New() *Report {
	return &Report{}
}

func (r *Report) Add(entry scanner.Entry, outcome engine.Outcome) error {
	if r.finalized {
		return fmt.Errorf("report is finalized")
	}
	r.items = append(r.items, Item{Entry: entry, Outcome: outcome})
	return nil
}

func (r *Report) AddWarnings(warnings ...scanner.Warning) {
	if r.finalized {
		return
	}
	r.warnings = append(r.warnings, warnings...)
}

func (r *Report) Finalize() {
	r.finalized = true
}

func (r *Report) Finalized() bool {
	return r.finalized
}

func (r *Report) Len() int {
	return len(r.items)
}

func (r *Report) Items() []Item {
	return r.items
}

func (r *Report) Warnings() []scanner.Warning {
	return r.warnings
}

// Summary are the aggregate counts of a finished run.
type Summary struct {
	Archives  int
	Succeeded int
	Failed    int
	Skipped   int

	// Files and Bytes total the successfully extracted output.
	Files int
	Bytes int64

	// Failures groups failure descriptions by cause.
	Failures map[engine.FailureClass][]string
}

func (r *Report) Summary() Summary {
	s := Summary{
		Archives: len(r.items),
		Failures: make(map[engine.FailureClass][]string),
	}
	for _, item := range r.items {
		switch item.Outcome.Status {
		case engine.StatusSuccess:
			s.Succeeded++
			s.Files += item.Outcome.Files
			s.Bytes += item.Outcome.Bytes
		case engine.StatusFailed:
			s.Failed++
			s.Failures[item.Outcome.Class] = append(s.Failures[item.Outcome.Class],
				fmt.Sprintf("%s: %s", item.Entry.Path, item.Outcome.Reason))
		case engine.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
