package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"whomst/internal/core"
	"whomst/internal/store"
	"whomst/internal/store/files"
)

type recordingPublisher struct {
	created []string
	removed []string
	err     error
	closed  bool
}

func (p *recordingPublisher) PublishEntryCreated(_ context.Context, e core.Entry) error {
	p.created = append(p.created, e.TS)
	return p.err
}

func (p *recordingPublisher) PublishEntryRemoved(_ context.Context, id string) error {
	p.removed = append(p.removed, id)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func newService(t *testing.T, pub EventPublisher) (*EntryService, string) {
	t.Helper()
	dir := t.TempDir()
	ids := store.NewIDGenerator()
	st, err := files.New(dir, ids)
	if err != nil {
		t.Fatalf("files.New() error = %v", err)
	}
	return NewEntryService(st, ids, pub), dir
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestEntryService_Submit(t *testing.T) {
	pub := &recordingPublisher{}
	svc, dir := newService(t, pub)
	ctx := context.Background()

	e, err := svc.Submit(ctx, core.Submission{Whomst: "alice", Tag: "food", Amount: "12", Notes: "lunch"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !e.Valid || e.TS == "" || e.Spender != "Alice" {
		t.Errorf("Submit() entry = %+v", e)
	}
	if countFiles(t, dir) != 1 {
		t.Errorf("expected one stored file")
	}
	if len(pub.created) != 1 || pub.created[0] != e.TS {
		t.Errorf("published created = %v, want [%s]", pub.created, e.TS)
	}
}

func TestEntryService_SubmitRejected(t *testing.T) {
	tests := []struct {
		name string
		sub  core.Submission
		msg  string
	}{
		{"bad amount", core.Submission{Whomst: "alice", Tag: "food", Amount: "abc"}, core.MsgInvalidAmount},
		{"bad date", core.Submission{Whomst: "alice", Tag: "food", Amount: "5", DateOverride: "2024-05-01"}, core.MsgInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc, dir := newService(t, pub)

			_, err := svc.Submit(context.Background(), tt.sub)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Submit() error = %v, want ValidationError", err)
			}
			if verr.Message != tt.msg {
				t.Errorf("message = %q, want %q", verr.Message, tt.msg)
			}
			if countFiles(t, dir) != 0 {
				t.Error("rejected submission must not write")
			}
			if len(pub.created) != 0 {
				t.Error("rejected submission must not publish")
			}
		})
	}
}

func TestEntryService_PublishFailureKeepsEntry(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	svc, dir := newService(t, pub)

	if _, err := svc.Submit(context.Background(), core.Submission{Whomst: "bob", Tag: "rent", Amount: "900"}); err != nil {
		t.Fatalf("Submit() error = %v, publish failures must not fail the request", err)
	}
	if countFiles(t, dir) != 1 {
		t.Error("entry should be stored")
	}
}

func TestEntryService_Remove(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	e, err := svc.Submit(ctx, core.Submission{Whomst: "alice", Tag: "food", Amount: "12"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Remove(ctx, e.TS); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(pub.removed) != 1 || pub.removed[0] != e.TS {
		t.Errorf("published removed = %v", pub.removed)
	}

	res, err := svc.Store().Load(ctx, store.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("removed entry still loaded: %+v", res.Entries)
	}

	err = svc.Remove(ctx, "1700000000.000009")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Remove(unknown) error = %v, want ErrNotFound", err)
	}
	if len(pub.removed) != 1 {
		t.Error("failed removal must not publish")
	}
}

func TestEntryService_WithoutPublisher(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	e, err := svc.Submit(ctx, core.Submission{Whomst: "alice", Tag: "food", Amount: "1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := svc.Remove(ctx, e.TS); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestEntryService_Close(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !pub.closed {
		t.Error("publisher should be closed")
	}
}
