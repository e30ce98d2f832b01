package sheets

import (
	"context"
	"errors"

	"whomst/internal/core"
)

// ErrNotMirrored is returned when an entry id has no row in the mirror.
var ErrNotMirrored = errors.New("entry not mirrored")

// Ports for outbound adapters.
type (
	// EntryMirror keeps a spreadsheet copy of the entry store. Rows are
	// keyed by entry id, so appending the same entry twice is harmless.
	EntryMirror interface {
		AppendEntry(ctx context.Context, rec core.Record) (rowRef string, err error)
		MarkRemoved(ctx context.Context, id string) (rowRef string, err error)
	}

	// MirrorIndex lists the entry ids already present in the mirror.
	MirrorIndex interface {
		MirroredIDs(ctx context.Context) (map[string]struct{}, error)
	}
)
