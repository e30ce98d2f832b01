package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"whomst/internal/amqp"
	"whomst/internal/log"
	"whomst/internal/sheets"
	"whomst/internal/store"
)

// MirrorWorker copies entry events into a spreadsheet mirror.
type MirrorWorker struct {
	mirror sheets.EntryMirror
	index  sheets.MirrorIndex
	loader store.EntryLoader
}

// NewMirrorWorker builds a worker. index and loader are only needed for
// Backfill and may be nil.
func NewMirrorWorker(mirror sheets.EntryMirror, index sheets.MirrorIndex, loader store.EntryLoader) *MirrorWorker {
	return &MirrorWorker{
		mirror: mirror,
		index:  index,
		loader: loader,
	}
}

// HandleEvent processes a single entry event from AMQP. Returning an error
// makes the consumer requeue the delivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.EntryEvent) error {
	slog.InfoContext(ctx, "Processing entry event",
		log.FieldComponent, log.ComponentWorker,
		log.FieldEvent, ev.Type,
		log.FieldEntryID, ev.ID)

	switch ev.Type {
	case amqp.EventEntryCreated:
		ref, err := w.mirror.AppendEntry(ctx, *ev.Entry)
		if err != nil {
			return fmt.Errorf("mirror entry %s: %w", ev.ID, err)
		}
		slog.InfoContext(ctx, "Successfully mirrored entry",
			log.FieldEntryID, ev.ID,
			log.FieldSheetsRef, ref)

	case amqp.EventEntryRemoved:
		ref, err := w.mirror.MarkRemoved(ctx, ev.ID)
		if errors.Is(err, sheets.ErrNotMirrored) {
			// Created event was lost. Backfill skips removed entries.
			slog.WarnContext(ctx, "Removed entry has no mirror row, skipping",
				log.FieldEntryID, ev.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark %s removed: %w", ev.ID, err)
		}
		slog.InfoContext(ctx, "Successfully marked entry removed",
			log.FieldEntryID, ev.ID,
			log.FieldSheetsRef, ref)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// BackfillResult counts what a backfill did.
type BackfillResult struct {
	Checked  int
	Appended int
	Errors   int
}

// Backfill appends every valid stored entry missing from the mirror. It
// recovers from events lost while the worker was down.
func (w *MirrorWorker) Backfill(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	if w.index == nil || w.loader == nil {
		return res, errors.New("backfill needs a mirror index and an entry loader")
	}

	mirrored, err := w.index.MirroredIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list mirrored ids: %w", err)
	}
	loaded, err := w.loader.Load(ctx, store.LoadOptions{Policy: store.LoadSkip})
	if err != nil {
		return res, fmt.Errorf("load entries: %w", err)
	}

	for _, e := range loaded.Entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		if _, ok := mirrored[e.TS]; ok {
			continue
		}
		if _, err := w.mirror.AppendEntry(ctx, e.ToRecord()); err != nil {
			slog.ErrorContext(ctx, "Failed to backfill entry",
				log.FieldEntryID, e.TS, log.FieldError, err)
			res.Errors++
			continue
		}
		res.Appended++
	}

	slog.InfoContext(ctx, "Backfill completed",
		log.FieldComponent, log.ComponentWorker,
		"checked", res.Checked,
		"appended", res.Appended,
		"errors", res.Errors,
		"skipped_files", len(loaded.Skipped))
	return res, nil
}
