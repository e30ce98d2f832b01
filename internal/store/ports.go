// Package store defines the persistence ports for entries and the pieces
// shared by every backend.
package store

import (
	"context"
	"fmt"
	"strings"

	"whomst/internal/core"
)

// EntryWriter persists a new entry. Implementations never overwrite an
// existing record; on an identifier collision they pick a fresh id, so
// the returned entry may carry a different TS than the one passed in.
type EntryWriter interface {
	Create(ctx context.Context, e core.Entry) (core.Entry, error)
}

// EntryRemover marks an entry invalid. Unknown ids yield core.ErrNotFound.
// Removing an already removed entry succeeds and changes nothing.
type EntryRemover interface {
	Remove(ctx context.Context, id string) error
}

// EntryLoader reads every stored record.
type EntryLoader interface {
	Load(ctx context.Context, opts LoadOptions) (LoadResult, error)
}

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the full set of operations a backend provides.
type Store interface {
	EntryWriter
	EntryRemover
	EntryLoader
	Pinger
	Close() error
}

// LoadPolicy decides what happens to records that cannot be decoded.
type LoadPolicy int

const (
	// LoadStrict fails the whole load on the first bad record.
	LoadStrict LoadPolicy = iota
	// LoadSkip drops bad records and reports them in LoadResult.Skipped.
	LoadSkip
)

func (p LoadPolicy) String() string {
	if p == LoadSkip {
		return "skip"
	}
	return "strict"
}

// ParsePolicy accepts "strict" or "skip" (case insensitive). Empty means strict.
func ParsePolicy(s string) (LoadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return LoadStrict, nil
	case "skip":
		return LoadSkip, nil
	default:
		return LoadStrict, fmt.Errorf("unknown load policy %q: must be strict or skip", s)
	}
}

// LoadOptions controls a Load call.
type LoadOptions struct {
	IncludeInvalid bool
	Policy         LoadPolicy
}

// Skipped describes a record dropped under LoadSkip.
type Skipped struct {
	Path string
	Err  error
}

// LoadResult is the outcome of a load. Entries are in no particular order.
type LoadResult struct {
	Entries []core.Entry
	Skipped []Skipped
}

// Keep applies the validity filter.
func (o LoadOptions) Keep(e core.Entry) bool {
	return e.Valid || o.IncludeInvalid
}
