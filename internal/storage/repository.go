// Package storage is the SQLite entry backend: an append-only table keyed
// by timestamp id where removal only clears the valid column.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"whomst/internal/core"
	"whomst/internal/log"
	"whomst/internal/store"

	_ "modernc.org/sqlite" // register sqlite driver
)

const maxCreateAttempts = 5

type SQLiteRepository struct {
	db   *sql.DB
	path string
	ids  *store.IDGenerator
}

var _ store.Store = (*SQLiteRepository)(nil)

func dsn(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string, ids *store.IDGenerator) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if ids == nil {
		ids = store.NewIDGenerator()
	}
	return &SQLiteRepository{db: db, path: dbPath, ids: ids}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create implements store.EntryWriter. A taken id is never overwritten.
func (r *SQLiteRepository) Create(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.TS == "" || !core.ValidID(e.TS) {
		e.TS = r.ids.Next()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO entries (ts, whomst, tag, amount, notes, date_override, valid, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ts) DO NOTHING`,
			e.TS, e.Whomst, e.Tag, e.Amount, e.Notes, e.DateOverride, boolToInt(e.Valid), now)
		if err != nil {
			return core.Entry{}, fmt.Errorf("insert entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.Entry{}, fmt.Errorf("insert entry: %w", err)
		}
		if n == 0 {
			slog.WarnContext(ctx, "Entry id collision, retrying",
				log.FieldComponent, log.ComponentStorage,
				log.FieldEntryID, e.TS,
				"attempt", attempt+1)
			e.TS = r.ids.Next()
			continue
		}

		if err := e.Derive(); err != nil {
			return core.Entry{}, err
		}
		slog.InfoContext(ctx, "Entry saved to SQLite",
			log.FieldComponent, log.ComponentStorage,
			log.FieldOperation, log.OpCreate,
			log.FieldEntryID, e.TS,
			log.FieldSpender, e.Whomst,
			log.FieldTag, e.Tag)
		return e, nil
	}
	return core.Entry{}, fmt.Errorf("create entry: no free id after %d attempts", maxCreateAttempts)
}

// Remove implements store.EntryRemover
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if !core.ValidID(id) {
		return fmt.Errorf("remove %q: %w", id, core.ErrNotFound)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE entries SET valid = 0, removed_at = ? WHERE ts = ? AND valid = 1`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("remove entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove entry %s: %w", id, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Entry removed in SQLite",
			log.FieldComponent, log.ComponentStorage,
			log.FieldOperation, log.OpDelete,
			log.FieldEntryID, id)
		return nil
	}

	var valid int
	err = r.db.QueryRowContext(ctx, `SELECT valid FROM entries WHERE ts = ?`, id).Scan(&valid)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("remove %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup entry %s: %w", id, err)
	}
	return nil
}

// Get returns one entry regardless of its validity.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT whomst, tag, amount, notes, date_override, ts, valid
		FROM entries WHERE ts = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("get %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Entry{}, err
	}
	if err := e.Derive(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

// Load implements store.EntryLoader
func (r *SQLiteRepository) Load(ctx context.Context, opts store.LoadOptions) (store.LoadResult, error) {
	query := `SELECT whomst, tag, amount, notes, date_override, ts, valid FROM entries`
	if !opts.IncludeInvalid {
		query += ` WHERE valid = 1`
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return store.LoadResult{}, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res store.LoadResult
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return store.LoadResult{}, fmt.Errorf("scan entry: %w", err)
		}
		if err := e.Derive(); err != nil {
			var le *core.LoadError
			if errors.As(err, &le) {
				le.Path = e.TS
			}
			if opts.Policy == store.LoadSkip {
				slog.WarnContext(ctx, "Skipping unreadable entry",
					log.FieldComponent, log.ComponentStorage,
					log.FieldEntryID, e.TS,
					log.FieldError, err)
				res.Skipped = append(res.Skipped, store.Skipped{Path: e.TS, Err: err})
				continue
			}
			return store.LoadResult{}, err
		}
		res.Entries = append(res.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return store.LoadResult{}, fmt.Errorf("iterate entries: %w", err)
	}
	return res, nil
}

// Import copies every record from src, soft deleted ones included. Records
// whose id already exists are left alone. It returns how many were added.
func (r *SQLiteRepository) Import(ctx context.Context, src store.EntryLoader) (int, error) {
	res, err := src.Load(ctx, store.LoadOptions{IncludeInvalid: true})
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (ts, whomst, tag, amount, notes, date_override, valid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, e := range res.Entries {
		out, err := stmt.ExecContext(ctx, e.TS, e.Whomst, e.Tag, e.Amount, e.Notes, e.DateOverride,
			boolToInt(e.Valid), e.Effective.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return 0, fmt.Errorf("import entry %s: %w", e.TS, err)
		}
		if n, _ := out.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Entries imported",
		log.FieldComponent, log.ComponentStorage,
		"added", added,
		"seen", len(res.Entries))
	return added, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e     core.Entry
		valid int
	)
	if err := s.Scan(&e.Whomst, &e.Tag, &e.Amount, &e.Notes, &e.DateOverride, &e.TS, &valid); err != nil {
		return core.Entry{}, err
	}
	e.Valid = valid == 1
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
