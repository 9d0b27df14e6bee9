package downloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mossbeam/hlsfetch/pkg/config"
	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("test", true)
}

func newConfig(t *testing.T, input, output string) *config.DownloadContext {
	t.Helper()
	cfg, err := config.New(input, output)
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}
	cfg.SetSkipSpaceCheck(true)
	return cfg
}

// Scenario 1: simple media playlist, merge=true.
func TestDownloadPlaylist_SimpleMerge(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:10.0,\ns0.ts\n#EXTINF:10.0,\ns1.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/s0.ts"] = []byte("AAA")
	fake.Bodies["https://host/s1.ts"] = []byte("BBB")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	if err := d.DownloadPlaylist(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(got) != "AAABBB" {
		t.Errorf("got %q, want %q", got, "AAABBB")
	}
	if !d.IsDownloadComplete() {
		t.Error("expected isDownloadComplete to be true")
	}
	if d.State() != Done {
		t.Errorf("expected state Done, got %v", d.State())
	}
}

// Scenario 2: master with a single variant auto-selects.
func TestDownloadMasterPlaylist_SingleVariantAutoSelects(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/master.m3u8"] = []byte(
		"#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000,RESOLUTION=640x360\nv1.m3u8\n")
	fake.Bodies["https://host/v1.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:5.0,\nseg0.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/seg0.ts"] = []byte("X")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/master.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	if err := d.DownloadMasterPlaylist(context.Background(), "", "", "", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.IsDownloadComplete() {
		t.Error("expected isDownloadComplete to be true")
	}
}

// Scenario 3: master with two variants and no keys is ambiguous.
func TestDownloadMasterPlaylist_AmbiguousWithoutKeys(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/master.m3u8"] = []byte(
		"#EXTM3U\n" +
			`#EXT-X-STREAM-INF:BANDWIDTH=2149280,RESOLUTION=1280x720,NAME="720"` + "\n" +
			"v720.m3u8\n" +
			`#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=854x480,NAME="480"` + "\n" +
			"v480.m3u8\n")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/master.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	err := d.DownloadMasterPlaylist(context.Background(), "", "", "", true)
	if !hlserr.IsKind(err, hlserr.VariantAmbiguous) {
		t.Fatalf("expected VariantAmbiguous, got %v", err)
	}
}

// Scenario 4: master with selection succeeds and fetches the right variant.
func TestDownloadMasterPlaylist_SelectsByName(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/master.m3u8"] = []byte(
		"#EXTM3U\n" +
			`#EXT-X-STREAM-INF:BANDWIDTH=2149280,RESOLUTION=1280x720,NAME="720"` + "\n" +
			"v720.m3u8\n" +
			`#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=854x480,NAME="480"` + "\n" +
			"v480.m3u8\n")
	fake.Bodies["https://host/v720.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:5.0,\nhi.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/hi.ts"] = []byte("HI")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/master.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	if err := d.DownloadMasterPlaylist(context.Background(), "720", "", "", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.Attempts["https://host/v480.m3u8"] != 0 {
		t.Error("expected the unselected variant to never be fetched")
	}
	if fake.Attempts["https://host/v720.m3u8"] == 0 {
		t.Error("expected the selected variant to be fetched")
	}
}

// Scenario 5: a master document passed to download_playlist fails fast,
// with no segment network calls made.
func TestDownloadPlaylist_WrongMethodMaster(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/master.m3u8"] = []byte(
		"#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000\nv1.m3u8\n")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/master.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	err := d.DownloadPlaylist(context.Background(), true)
	if !hlserr.IsKind(err, hlserr.WrongMethodMaster) {
		t.Fatalf("expected WrongMethodMaster, got %v", err)
	}
	if fake.Attempts["https://host/v1.m3u8"] != 0 {
		t.Error("expected no segment/variant fetch after a wrong-method failure")
	}
}

// Scenario 6: transient failure recovery — second segment 503s twice
// then succeeds; final output is still correct.
func TestDownloadPlaylist_TransientFailureRecovers(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:10.0,\ns0.ts\n#EXTINF:10.0,\ns1.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/s0.ts"] = []byte("AAA")
	fake.Sequence["https://host/s1.ts"] = []fetcher.FakeResult{
		{Status: 503},
		{Status: 503},
		{Status: 200, Body: []byte("BBB")},
	}

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	if err := d.DownloadPlaylist(context.Background(), true); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	got, _ := os.ReadFile(out)
	if string(got) != "AAABBB" {
		t.Errorf("got %q, want %q", got, "AAABBB")
	}
}

// Scenario 7: fatal segment failure leaves no temp files and no output.
func TestDownloadPlaylist_FatalSegmentFailure(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:1.0,\ns0.ts\n#EXTINF:1.0,\ns1.ts\n#EXTINF:1.0,\ns2.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/s0.ts"] = []byte("A")
	fake.Statuses["https://host/s1.ts"] = 500
	fake.Bodies["https://host/s2.ts"] = []byte("C")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)
	if err := cfg.SetMaxThreads(1); err != nil {
		t.Fatalf("failed to set max threads: %v", err)
	}

	d := New(cfg, fake, testLogger(), nil)
	err := d.DownloadPlaylist(context.Background(), true)
	if !hlserr.IsKind(err, hlserr.SegmentFetchFailed) {
		t.Fatalf("expected SegmentFetchFailed, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("expected no final output to exist")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Errorf("expected no leftover files, found %s", e.Name())
	}
}

// Scenario 8: merge=false leaves per-segment files and no concatenation.
func TestDownloadPlaylist_MergeFalse(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte(
		"#EXTM3U\n#EXTINF:1.0,\ns0.ts\n#EXTINF:1.0,\ns1.ts\n#EXTINF:1.0,\ns2.ts\n#EXT-X-ENDLIST\n")
	fake.Bodies["https://host/s0.ts"] = []byte("A")
	fake.Bodies["https://host/s1.ts"] = []byte("B")
	fake.Bodies["https://host/s2.ts"] = []byte("C")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	if err := d.DownloadPlaylist(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, "out."+string(rune('0'+i))+".ts")
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("expected no concatenated output when merge=false")
	}
	if !d.IsDownloadComplete() {
		t.Error("expected isDownloadComplete to be true even without concatenation")
	}
}

func TestDownloadMasterPlaylist_WrongMethodMedia(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte("#EXTM3U\n#EXTINF:1.0,\ns0.ts\n#EXT-X-ENDLIST\n")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	err := d.DownloadMasterPlaylist(context.Background(), "", "", "", true)
	if !hlserr.IsKind(err, hlserr.WrongMethodMedia) {
		t.Fatalf("expected WrongMethodMedia, got %v", err)
	}
}

func TestDownloadPlaylist_EncryptedUnsupported(t *testing.T) {
	dir := t.TempDir()
	fake := fetcher.NewFake()
	fake.Bodies["https://host/a.m3u8"] = []byte(
		"#EXTM3U\n" + `#EXT-X-KEY:METHOD=AES-128,URI="key.bin"` + "\n#EXTINF:1.0,\ns0.ts\n#EXT-X-ENDLIST\n")

	out := filepath.Join(dir, "out.ts")
	cfg := newConfig(t, "https://host/a.m3u8", out)

	d := New(cfg, fake, testLogger(), nil)
	err := d.DownloadPlaylist(context.Background(), true)
	if !hlserr.IsKind(err, hlserr.EncryptedUnsupported) {
		t.Fatalf("expected EncryptedUnsupported, got %v", err)
	}
}
