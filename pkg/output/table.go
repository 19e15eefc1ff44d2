package output

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Binary (IEC) units for bytes.
const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
	tib = 1024 * gib
)

// FormatBytes formats a byte count using IEC binary units.
// Returns a compact human-readable string like "1.23 GiB".
func FormatBytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}

	switch {
	case b >= tib:
		return fmt.Sprintf("%.2f TiB", float64(b)/tib)
	case b >= gib:
		return fmt.Sprintf("%.2f GiB", float64(b)/gib)
	case b >= mib:
		return fmt.Sprintf("%.2f MiB", float64(b)/mib)
	case b >= kib:
		return fmt.Sprintf("%.2f KiB", float64(b)/kib)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// TableOptions configures a TableWriter.
type TableOptions struct {
	// HumanSizes renders byte columns in IEC units instead of raw
	// integers.
	HumanSizes bool

	// ShowTiers appends a storage-tier breakdown column.
	ShowTiers bool
}

// TableWriter renders usage records as an aligned text table.
//
// It implements Writer so callers can drive table and JSONL output
// through the same code path. Progress and error records are dropped:
// in table mode those belong to the logger, not the report.
// TableWriter is not safe for concurrent use.
type TableWriter struct {
	tw         *tabwriter.Writer
	out        io.Writer
	opts       TableOptions
	wroteRow   bool
	headerDone bool
}

// NewTableWriter creates a table writer targeting w.
func NewTableWriter(w io.Writer, opts TableOptions) *TableWriter {
	return &TableWriter{
		tw:   tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		out:  w,
		opts: opts,
	}
}

// WriteUsage appends a table row for the usage record.
func (t *TableWriter) WriteUsage(_ context.Context, usage *UsageRecord) error {
	if !t.headerDone {
		header := "PREFIX\tOBJECTS\tBYTES\tOLDEST\tNEWEST"
		if t.opts.ShowTiers {
			header += "\tTIERS"
		}
		if _, err := fmt.Fprintln(t.tw, header); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
		t.headerDone = true
	}

	prefix := usage.Prefix
	if prefix == "" {
		// Blank root reads as a missing cell; match du's convention.
		prefix = "."
	}

	row := fmt.Sprintf("%s\t%d\t%s\t%s\t%s",
		prefix,
		usage.Objects,
		t.formatSize(usage.Bytes),
		formatTime(usage.Oldest),
		formatTime(usage.Newest),
	)
	if t.opts.ShowTiers {
		row += "\t" + t.formatTiers(usage.Tiers)
	}

	if _, err := fmt.Fprintln(t.tw, row); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	t.wroteRow = true
	return nil
}

// WriteError is a no-op: table mode reports errors through the logger.
func (t *TableWriter) WriteError(context.Context, *ErrorRecord) error {
	return nil
}

// WriteProgress is a no-op in table mode.
func (t *TableWriter) WriteProgress(context.Context, *ProgressRecord) error {
	return nil
}

// WriteSummary flushes the table and appends a summary block.
func (t *TableWriter) WriteSummary(_ context.Context, sum *SummaryRecord) error {
	if err := t.tw.Flush(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%d objects, %s", sum.ObjectsListed, t.formatSize(sum.BytesTotal))
	if sum.ObjectsSkipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", sum.ObjectsSkipped)
	}
	fmt.Fprintf(&b, " (%d pages, %s)", sum.Pages, sum.DurationHuman)
	if sum.Truncated {
		b.WriteString("\npartial result: stopped by " + sum.TruncatedReason)
	}
	b.WriteString("\n")

	if err := writeAll(t.out, []byte(b.String())); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// Close flushes any pending table rows.
func (t *TableWriter) Close() error {
	return t.tw.Flush()
}

func (t *TableWriter) formatSize(b int64) string {
	if t.opts.HumanSizes {
		return FormatBytes(b)
	}
	return strconv.FormatInt(b, 10)
}

func (t *TableWriter) formatTiers(tiers map[string]TierUsage) string {
	if len(tiers) == 0 {
		return "-"
	}

	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		u := tiers[name]
		parts = append(parts, fmt.Sprintf("%s=%s/%d", name, t.formatSize(u.Bytes), u.Objects))
	}
	return strings.Join(parts, " ")
}

func formatTime(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}

// Compile-time check that TableWriter implements Writer.
var _ Writer = (*TableWriter)(nil)
