// Package pipeline turns stored entries into the tabular view every report
// is computed from.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"whomst/internal/core"
	"whomst/internal/log"
	"whomst/internal/store"
)

// DefaultTrailingDays is the reporting window of the dashboard.
const DefaultTrailingDays = 90

// Options controls BuildView.
type Options struct {
	IncludeInvalid bool
	// TrailingDays keeps rows whose effective date is strictly less than
	// this many days before Now. Zero disables the window.
	TrailingDays int
	// Now anchors the window. Zero means time.Now().
	Now    time.Time
	Policy store.LoadPolicy
}

// Row is an entry with its parsed amount.
type Row struct {
	core.Entry
	Value int64
}

// View is the sorted, filtered table of rows. Rows are in ascending
// effective date order.
type View struct {
	Rows    []Row
	Now     time.Time
	Skipped []store.Skipped
}

// Len returns the number of rows.
func (v View) Len() int {
	return len(v.Rows)
}

// BuildView loads entries, sorts them by effective date, parses every amount
// and applies the trailing window. A single unparseable amount fails the
// whole view.
func BuildView(ctx context.Context, loader store.EntryLoader, opts Options) (View, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	res, err := loader.Load(ctx, store.LoadOptions{
		IncludeInvalid: opts.IncludeInvalid,
		Policy:         opts.Policy,
	})
	if err != nil {
		return View{}, fmt.Errorf("build view: %w", err)
	}

	entries := res.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Effective.Before(entries[j].Effective)
	})

	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		v, err := core.ParseAmount(e.Amount)
		if err != nil {
			return View{}, &core.LoadError{
				Path:   e.TS + ".json",
				Reason: fmt.Sprintf("amount %q is not an integer", e.Amount),
				Err:    err,
			}
		}
		rows = append(rows, Row{Entry: e, Value: v})
	}

	if opts.TrailingDays > 0 {
		rows = Trailing(rows, now, opts.TrailingDays)
	}

	slog.DebugContext(ctx, "View built",
		log.FieldComponent, log.ComponentPipeline,
		"loaded", len(entries),
		"rows", len(rows),
		"trailing_days", opts.TrailingDays)

	return View{Rows: rows, Now: now, Skipped: res.Skipped}, nil
}

// Trailing keeps rows with now - effective < days. The comparison is strict,
// so a row exactly on the boundary is dropped. Future dated rows are kept.
func Trailing(rows []Row, now time.Time, days int) []Row {
	window := time.Duration(days) * 24 * time.Hour
	out := rows[:0:0]
	for _, r := range rows {
		if now.Sub(r.Effective) < window {
			out = append(out, r)
		}
	}
	return out
}

// Total sums every row.
func (v View) Total() int64 {
	var sum int64
	for _, r := range v.Rows {
		sum += r.Value
	}
	return sum
}
