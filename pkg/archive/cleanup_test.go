package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanup_RemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.ts")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	c := NewCleanup(CleanupConfig{Enabled: true, RetentionPeriod: 0, BatchSize: 10}, testLogger())
	c.Schedule(path)
	c.sweep()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected stale file to be removed")
	}
}

func TestCleanup_RetainsFreshFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.ts")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	c := NewCleanup(CleanupConfig{Enabled: true, RetentionPeriod: time.Hour, BatchSize: 10}, testLogger())
	c.Schedule(path)
	c.sweep()

	if _, err := os.Stat(path); err != nil {
		t.Error("expected fresh file to be retained")
	}
	if c.Pending() != 1 {
		t.Errorf("expected the fresh file to stay pending for a later sweep, got %d pending", c.Pending())
	}
}

func TestCleanup_DisabledIsNoop(t *testing.T) {
	c := NewCleanup(CleanupConfig{Enabled: false}, testLogger())
	c.Schedule("/tmp/whatever.ts")
	if c.Pending() != 0 {
		t.Error("expected Schedule to be a no-op when cleanup is disabled")
	}
}

func TestCleanup_MissingFileIsNotAnError(t *testing.T) {
	c := NewCleanup(CleanupConfig{Enabled: true, BatchSize: 10}, testLogger())
	c.Schedule("/no/such/file.ts")
	c.sweep()
	if c.Pending() != 0 {
		t.Error("expected a missing file to still drain from the pending batch")
	}
}
