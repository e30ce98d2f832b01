package services

import (
	"context"
	"fmt"
	"log/slog"

	"whomst/internal/core"
	"whomst/internal/log"
	"whomst/internal/store"
)

// EventPublisher announces store changes. amqp.Client implements it.
type EventPublisher interface {
	PublishEntryCreated(ctx context.Context, e core.Entry) error
	PublishEntryRemoved(ctx context.Context, id string) error
	Close() error
}

// EntryService orchestrates entry operations across the store and AMQP.
type EntryService struct {
	store     store.Store
	ids       *store.IDGenerator
	publisher EventPublisher
}

// NewEntryService wires a store with an optional publisher. ids must be the
// generator the store retries with, so both draw from one sequence.
func NewEntryService(st store.Store, ids *store.IDGenerator, publisher EventPublisher) *EntryService {
	if ids == nil {
		ids = store.NewIDGenerator()
	}
	return &EntryService{
		store:     st,
		ids:       ids,
		publisher: publisher,
	}
}

// Store exposes the underlying store for reads.
func (s *EntryService) Store() store.Store {
	return s.store
}

// Submit validates a submission, stores it and publishes an event. A
// rejected submission leaves the store untouched.
func (s *EntryService) Submit(ctx context.Context, sub core.Submission) (core.Entry, error) {
	entry, err := core.NewEntry(sub, s.ids.Next())
	if err != nil {
		return core.Entry{}, err
	}

	// Store first; the event is best effort
	saved, err := s.store.Create(ctx, entry)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogEntryCreated(ctx, saved.TS, saved.Whomst, saved.Tag, saved.Amount)

	if s.publisher != nil {
		if err := s.publisher.PublishEntryCreated(ctx, saved); err != nil {
			slog.ErrorContext(ctx, "Failed to publish entry created event",
				log.FieldEntryID, saved.TS, log.FieldError, err)
		}
	}
	return saved, nil
}

// Remove soft deletes id. Unknown ids return an error wrapping
// core.ErrNotFound.
func (s *EntryService) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogEntryRemoved(ctx, id)

	if s.publisher != nil {
		if err := s.publisher.PublishEntryRemoved(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish entry removed event",
				log.FieldEntryID, id, log.FieldError, err)
		}
	}
	return nil
}

// Close closes both store and publisher.
func (s *EntryService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close entry service: %v", errs)
	}
	return nil
}
