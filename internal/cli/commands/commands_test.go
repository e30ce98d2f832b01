package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"whomst/internal/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func filesArgs(dir string, args ...string) []string {
	return append([]string{"--backend", "files", "--data-dir", dir, "--days", "90"}, args...)
}

func entryIDs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return ids
}

func TestSubmitListReport(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, filesArgs(dir, "submit", "-w", "alice", "-t", "food", "-a", "1200", "--notes", "market")...); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := run(t, filesArgs(dir, "submit", "-w", "ALICE", "-t", "rent", "-a", "30")...); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := run(t, filesArgs(dir, "submit", "-w", "bob", "-t", "food", "--amount=-5")...); err != nil {
		t.Fatalf("submit: %v", err)
	}

	out, err := run(t, filesArgs(dir, "list")...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"ENTRIES", "market", "ALICE", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, filesArgs(dir, "report")...)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"Spent by POC", "Alice", "1,230", "Bob", "1,225", "Spending by tag", "Spending by POC and tag"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad amount", []string{"submit", "-w", "a", "-t", "x", "-a", "abc"}, core.MsgInvalidAmount},
		{"bad date", []string{"submit", "-w", "a", "-t", "x", "-a", "3", "--date", "2024-01-01"}, core.MsgInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, filesArgs(dir, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	if ids := entryIDs(t, dir); len(ids) != 0 {
		t.Errorf("rejected submissions wrote %d entries", len(ids))
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, filesArgs(dir, "remove", "1700000000.000001")...); err == nil || !strings.Contains(err.Error(), core.MsgInvalidID) {
		t.Errorf("remove unknown err = %v", err)
	}

	if _, err := run(t, filesArgs(dir, "submit", "-w", "alice", "-t", "food", "-a", "9", "--notes", "oops")...); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ids := entryIDs(t, dir)
	if len(ids) != 1 {
		t.Fatalf("got %d entries", len(ids))
	}
	if _, err := run(t, filesArgs(dir, "remove", ids[0])...); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out, err := run(t, filesArgs(dir, "list")...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "oops") {
		t.Errorf("removed entry still listed:\n%s", out)
	}

	out, err = run(t, filesArgs(dir, "list", "--all")...)
	if err != nil {
		t.Fatalf("list --all: %v", err)
	}
	if !strings.Contains(out, "oops") || !strings.Contains(out, "false") {
		t.Errorf("list --all should show the removed entry:\n%s", out)
	}
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	if _, err := run(t, filesArgs(dir, "submit", "-w", "alice", "-t", "food", "-a", "9")...); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := run(t, filesArgs(dir, "dump", "--out", outDir)...); err != nil {
		t.Fatalf("dump: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "dump.csv"))
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
		t.Errorf("dump has %d lines:\n%s", len(lines), data)
	}
}

func TestSeedAndImport(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "whomst.db")

	if _, err := run(t, filesArgs(dir, "seed", "--count", "12", "--seed", "7", "--spenders", "alice,bob")...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ids := entryIDs(t, dir); len(ids) != 12 {
		t.Fatalf("seed wrote %d entries, want 12", len(ids))
	}

	if _, err := run(t, "--backend", "sqlite", "--db", db, "--data-dir", dir, "import"); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := run(t, "--backend", "sqlite", "--db", db, "--data-dir", dir, "--days", "0", "report")
	if err != nil {
		t.Fatalf("sqlite report: %v", err)
	}
	if !strings.Contains(out, "All time") || !strings.Contains(out, "Alice") {
		t.Errorf("sqlite report:\n%s", out)
	}

	// A second import adds nothing.
	out, err = run(t, "--backend", "sqlite", "--db", db, "--data-dir", dir, "import")
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if !strings.Contains(out, "Imported 0 new entries") {
		t.Errorf("re-import output: %s", out)
	}
}

func TestFakeSubmissions(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	subs := fakeSubmissions(gofakeit.New(42), 50, []string{"alice", "bob"}, now, 30)
	if len(subs) != 50 {
		t.Fatalf("got %d submissions", len(subs))
	}

	earliest := now.AddDate(0, 0, -30)
	for i, sub := range subs {
		e, err := core.NewEntry(sub, core.FormatTS(now))
		if err != nil {
			t.Fatalf("submission %d rejected: %v (%+v)", i, err, sub)
		}
		if sub.Whomst != "alice" && sub.Whomst != "bob" {
			t.Errorf("submission %d spender = %q", i, sub.Whomst)
		}
		d, err := core.ParseOverride(e.DateOverride)
		if err != nil {
			t.Fatalf("override %q: %v", e.DateOverride, err)
		}
		if d.Before(earliest) || d.After(now) {
			t.Errorf("submission %d date %v outside window", i, d)
		}
	}
}

func TestInvalidFlags(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, filesArgs(dir, "--load-policy", "lenient", "list")...); err == nil {
		t.Error("expected error for unknown load policy")
	}
	if _, err := run(t, "--backend", "memory", "--data-dir", dir, "list"); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := run(t, filesArgs(dir, "seed", "--count", "0")...); err == nil {
		t.Error("expected error for zero count")
	}
}
