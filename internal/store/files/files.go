// Package files stores each entry as one JSON document named <ts>.json in
// a flat directory.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"whomst/internal/core"
	"whomst/internal/log"
	"whomst/internal/store"
)

const maxCreateAttempts = 5

// Store is a directory of JSON entry files.
type Store struct {
	dir string
	ids *store.IDGenerator
}

var _ store.Store = (*Store)(nil)

// New opens dir, creating it when missing.
func New(dir string, ids *store.IDGenerator) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if ids == nil {
		ids = store.NewIDGenerator()
	}
	return &Store{dir: dir, ids: ids}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create writes a new record with an exclusive create.
func (s *Store) Create(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.TS == "" || !core.ValidID(e.TS) {
		e.TS = s.ids.Next()
	}
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.Entry{}, err
		}
		data, err := json.Marshal(e.ToRecord())
		if err != nil {
			return core.Entry{}, fmt.Errorf("marshal entry: %w", err)
		}
		err = writeExclusive(s.path(e.TS), data)
		if errors.Is(err, fs.ErrExist) {
			slog.WarnContext(ctx, "Entry id collision, retrying",
				log.FieldComponent, log.ComponentStore,
				log.FieldEntryID, e.TS,
				"attempt", attempt+1)
			e.TS = s.ids.Next()
			continue
		}
		if err != nil {
			return core.Entry{}, fmt.Errorf("write entry %s: %w", e.TS, err)
		}
		if err := e.Derive(); err != nil {
			return core.Entry{}, err
		}
		slog.InfoContext(ctx, "Entry saved",
			log.FieldComponent, log.ComponentStore,
			log.FieldOperation, log.OpCreate,
			log.FieldEntryID, e.TS,
			log.FieldSpender, e.Whomst,
			log.FieldTag, e.Tag)
		return e, nil
	}
	return core.Entry{}, fmt.Errorf("create entry: no free id after %d attempts", maxCreateAttempts)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Remove flips the valid flag of an existing record. Other fields, including
// any unknown ones, are written back untouched.
func (s *Store) Remove(ctx context.Context, id string) error {
	if !core.ValidID(id) {
		return fmt.Errorf("remove %q: %w", id, core.ErrNotFound)
	}
	path := s.path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read entry %s: %w", id, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return &core.LoadError{Path: filepath.Base(path), Reason: "malformed JSON", Err: err}
	}
	if string(doc["valid"]) == "false" {
		slog.DebugContext(ctx, "Entry already removed",
			log.FieldComponent, log.ComponentStore,
			log.FieldEntryID, id)
		return nil
	}
	doc["valid"] = json.RawMessage("false")

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", id, err)
	}
	if err := replaceFile(s.dir, path, out); err != nil {
		return fmt.Errorf("rewrite entry %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Entry removed",
		log.FieldComponent, log.ComponentStore,
		log.FieldOperation, log.OpDelete,
		log.FieldEntryID, id)
	return nil
}

// replaceFile writes through a temp file in dir and renames it over path.
// The temp name has no .json suffix so a concurrent Load never sees it.
func replaceFile(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".entry-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load walks the directory tree and decodes every .json file.
func (s *Store) Load(ctx context.Context, opts store.LoadOptions) (store.LoadResult, error) {
	var res store.LoadResult

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		e, err := core.DecodeRecord(rel, data)
		if err != nil {
			if opts.Policy == store.LoadSkip {
				slog.WarnContext(ctx, "Skipping unreadable entry",
					log.FieldComponent, log.ComponentStore,
					log.FieldOperation, log.OpRead,
					log.FieldPath, rel,
					log.FieldError, err)
				res.Skipped = append(res.Skipped, store.Skipped{Path: rel, Err: err})
				return nil
			}
			return err
		}
		if opts.Keep(e) {
			res.Entries = append(res.Entries, e)
		}
		return nil
	})
	if err != nil {
		return store.LoadResult{}, err
	}

	slog.DebugContext(ctx, "Entries loaded",
		log.FieldComponent, log.ComponentStore,
		log.FieldOperation, log.OpList,
		"count", len(res.Entries),
		"skipped", len(res.Skipped),
		"include_invalid", opts.IncludeInvalid)
	return res, nil
}

// Ping checks that the directory is still there.
func (s *Store) Ping(ctx context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("data path %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error {
	return nil
}
