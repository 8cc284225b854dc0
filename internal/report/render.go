package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/unarc/unarc/internal/engine"
)

// Render writes the per-archive table and the run summary. It is the sole
// surface for failures: nothing recorded here is dropped.
func (r *Report) Render(w io.Writer) error {
	table := tablewriter.NewTable(w)
	table.Header([]string{"Archive", "Format", "Status", "Files", "Size", "Detail"})
	for _, item := range r.items {
		files := ""
		size := ""
		if item.Outcome.Status == engine.StatusSuccess {
			files = strconv.Itoa(item.Outcome.Files)
			size = HumanSize(item.Outcome.Bytes)
		}
		if err := table.Append([]string{
			filepath.Base(item.Entry.Path),
			string(item.Entry.Format),
			string(item.Outcome.Status),
			files,
			size,
			item.Outcome.Reason,
		}); err != nil {
			return fmt.Errorf("render report row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render report table: %w", err)
	}

	s := r.Summary()
	fmt.Fprintf(w, "\narchives: %d  succeeded: %d  failed: %d  skipped: %d\n",
		s.Archives, s.Succeeded, s.Failed, s.Skipped)
	if s.Succeeded > 0 {
		fmt.Fprintf(w, "extracted: %d files (%s)\n", s.Files, HumanSize(s.Bytes))
	}
	if s.Archives > 0 {
		fmt.Fprintf(w, "success rate: %.1f%%\n", float64(s.Succeeded)/float64(s.Archives)*100)
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "\nfailures by cause:\n")
		classes := lo.Keys(s.Failures)
		sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
		for _, class := range classes {
			fmt.Fprintf(w, "  %s:\n", class)
			for _, detail := range s.Failures[class] {
				fmt.Fprintf(w, "    - %s\n", detail)
			}
		}
	}

	if len(r.warnings) > 0 {
		fmt.Fprintf(w, "\nscan warnings:\n")
		for _, warning := range r.warnings {
			fmt.Fprintf(w, "  - %s: %v\n", warning.Path, warning.Err)
		}
	}

	return nil
}

// HumanSize renders a byte count with binary-step units.
func HumanSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f PB", size)
}
