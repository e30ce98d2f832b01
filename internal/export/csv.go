// Package export writes full snapshots of the store as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"whomst/internal/log"
	"whomst/internal/pipeline"
	"whomst/internal/store"
)

// DumpFileName is the snapshot file written inside the data directory.
const DumpFileName = "dump.csv"

// DateTimeLayout formats the derived effective date column.
const DateTimeLayout = "2006-01-02 15:04:05.999999"

// Columns is the header row of a dump.
var Columns = []string{"whomst", "tag", "amount", "notes", "date_override", "ts", "valid", "datetime"}

// WriteCSV writes every row of v, in view order, under a header.
func WriteCSV(w io.Writer, v pipeline.View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range v.Rows {
		rec := []string{
			r.Whomst,
			r.Tag,
			strconv.FormatInt(r.Value, 10),
			r.Notes,
			r.DateOverride,
			r.TS,
			strconv.FormatBool(r.Valid),
			r.Effective.Format(DateTimeLayout),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", r.TS, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Snapshot builds the unfiltered view, soft deleted entries included.
func Snapshot(ctx context.Context, loader store.EntryLoader, policy store.LoadPolicy) (pipeline.View, error) {
	return pipeline.BuildView(ctx, loader, pipeline.Options{
		IncludeInvalid: true,
		Policy:         policy,
	})
}

// DumpFile writes a snapshot to dir/dump.csv and returns its path. The file
// is replaced atomically so a concurrent download never sees a partial dump.
func DumpFile(ctx context.Context, loader store.EntryLoader, dir string, policy store.LoadPolicy) (string, error) {
	v, err := Snapshot(ctx, loader, policy)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dump-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, v); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close dump file: %w", err)
	}

	path := filepath.Join(dir, DumpFileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish dump file: %w", err)
	}

	slog.InfoContext(ctx, "Dump written",
		log.FieldComponent, log.ComponentExport,
		log.FieldOperation, log.OpExport,
		log.FieldPath, path,
		"rows", v.Len())
	return path, nil
}
