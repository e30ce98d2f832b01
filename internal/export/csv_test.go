package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"whomst/internal/core"
	"whomst/internal/store"
	"whomst/internal/store/files"
)

func seed(t *testing.T, s *files.Store, subs ...core.Submission) []core.Entry {
	t.Helper()
	ids := store.NewIDGenerator()
	var out []core.Entry
	for _, sub := range subs {
		e, err := core.NewEntry(sub, ids.Next())
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		e, err = s.Create(context.Background(), e)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestDumpFileIncludesRemovedAndOldEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := files.New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	entries := seed(t, s,
		core.Submission{Whomst: "Alice", Tag: "food", Amount: "12", Notes: "a, b"},
		core.Submission{Whomst: "bob", Tag: "rent", Amount: "900", DateOverride: "01-15-2001"},
		core.Submission{Whomst: "carol", Tag: "fun", Amount: "3"},
	)
	if err := s.Remove(ctx, entries[2].TS); err != nil {
		t.Fatal(err)
	}

	path, err := DumpFile(ctx, s, dir, store.LoadStrict)
	if err != nil {
		t.Fatalf("DumpFile: %v", err)
	}
	if path != filepath.Join(dir, DumpFileName) {
		t.Errorf("path = %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("dump has %d lines, want header + 3", len(records))
	}
	if got := records[0]; len(got) != len(Columns) || got[0] != "whomst" || got[7] != "datetime" {
		t.Errorf("header = %v", got)
	}
	// The 2001 override sorts first.
	if records[1][0] != "bob" || records[1][4] != "01-15-2001" || records[1][7] != "2001-01-15 00:00:00" {
		t.Errorf("first row = %v", records[1])
	}
	var sawInvalid, sawQuoted bool
	for _, r := range records[1:] {
		if r[6] == "false" && r[0] == "carol" {
			sawInvalid = true
		}
		if r[3] == "a, b" {
			sawQuoted = true
		}
	}
	if !sawInvalid {
		t.Error("removed entry missing from dump")
	}
	if !sawQuoted {
		t.Error("notes with a comma did not round trip")
	}

	// The dump itself must not be picked up as an entry.
	res, err := s.Load(ctx, store.LoadOptions{IncludeInvalid: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 3 {
		t.Errorf("Load after dump = %d entries, want 3", len(res.Entries))
	}
}

func TestDumpFileFailsOnBadAmount(t *testing.T) {
	dir := t.TempDir()
	s, err := files.New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	body := `{"whomst":"a","tag":"t","amount":"lots","notes":"","date_override":"","ts":"1700000000","valid":false}`
	if err := os.WriteFile(filepath.Join(dir, "1700000000.json"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := DumpFile(context.Background(), s, dir, store.LoadStrict); !core.IsLoad(err) {
		t.Fatalf("DumpFile error = %v, want LoadError", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DumpFileName)); !os.IsNotExist(err) {
		t.Error("no dump should be written when the view fails")
	}
}
