package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mossbeam/hlsfetch/pkg/fetchpool"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}

func TestConcatenate_OrderPreservation(t *testing.T) {
	dir := t.TempDir()
	// Deliberately out of order to prove Concatenate sorts by Index.
	jobs := []*fetchpool.FetchJob{
		{Index: 2, TempPath: writeTemp(t, dir, "c", "CCC")},
		{Index: 0, TempPath: writeTemp(t, dir, "a", "AAA")},
		{Index: 1, TempPath: writeTemp(t, dir, "b", "BBB")},
	}

	out := filepath.Join(dir, "final.ts")
	if err := Concatenate(context.Background(), out, jobs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(got) != "AAABBBCCC" {
		t.Errorf("got %q, want %q", got, "AAABBBCCC")
	}

	for _, j := range jobs {
		if _, err := os.Stat(j.TempPath); !os.IsNotExist(err) {
			t.Errorf("expected temp %s to be removed", j.TempPath)
		}
	}
}

func TestConcatenate_MissingTempFailsBuild(t *testing.T) {
	dir := t.TempDir()
	jobs := []*fetchpool.FetchJob{
		{Index: 0, TempPath: filepath.Join(dir, "missing.part")},
	}
	out := filepath.Join(dir, "final.ts")

	err := Concatenate(context.Background(), out, jobs)
	if !hlserr.IsKind(err, hlserr.BuildFailed) {
		t.Fatalf("expected BuildFailed, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("expected partial output to be removed on failure")
	}
}

func TestRenameStable(t *testing.T) {
	dir := t.TempDir()
	jobs := []*fetchpool.FetchJob{
		{Index: 1, TempPath: writeTemp(t, dir, "p1", "two")},
		{Index: 0, TempPath: writeTemp(t, dir, "p0", "one")},
	}

	paths, err := RenameStable(jobs, dir, "out", ".ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "out.0.ts"),
		filepath.Join(dir, "out.1.ts"),
	}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("got %v, want %v", paths, want)
	}
	for _, p := range want {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected stable file %s to exist: %v", p, err)
		}
	}
}
