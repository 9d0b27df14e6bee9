// Package playlist implements the M3U8 document model spec.md §3–§4
// describes: loading a playlist (local or remote), classifying it,
// extracting master-playlist variants, selecting one, and planning a
// media playlist's segments. Grounded on the teacher's pkg/media
// package (LoadMediaPlaylist, GetAllVariants) but reworked so
// classification is decided directly off the raw lines, per spec.md's
// literal tag-based rule, rather than inferred from grafov/m3u8's
// listType.
package playlist

import (
	"bufio"
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mossbeam/hlsfetch/pkg/fetcher"
	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

// Kind labels a parsed playlist document.
type Kind int

const (
	Unknown Kind = iota
	Media
	Master
)

func (k Kind) String() string {
	switch k {
	case Media:
		return "MEDIA"
	case Master:
		return "MASTER"
	default:
		return "UNKNOWN"
	}
}

// Document is the parsed playlist: its source, the base URI used to
// resolve relative references, its trimmed non-empty lines, and its
// classified kind.
type Document struct {
	Source  string
	BaseURI string
	Lines   []string
	Kind    Kind
}

// Load retrieves an M3U8 document from a URL or local path. It returns
// hlserr.NoNetwork when the fetcher reports a connectivity failure,
// hlserr.InputUnreachable on a non-2xx status or local read error.
func Load(ctx context.Context, f fetcher.Fetcher, location string) (*Document, error) {
	if isURL(location) {
		return loadRemote(ctx, f, location)
	}
	return loadLocal(location)
}

func isURL(location string) bool {
	return strings.Contains(location, "://")
}

func loadRemote(ctx context.Context, f fetcher.Fetcher, location string) (*Document, error) {
	resp, err := f.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !fetcher.StatusOK(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return nil, hlserr.New(hlserr.InputUnreachable, "non-2xx status loading "+location)
	}

	lines, err := readLines(resp.Body)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.InputUnreachable, "reading body of "+location, err)
	}

	return &Document{
		Source:  location,
		BaseURI: baseOfURL(location),
		Lines:   lines,
		Kind:    Classify(lines),
	}, nil
}

func loadLocal(location string) (*Document, error) {
	file, err := os.Open(location)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.InputUnreachable, "reading local file "+location, err)
	}
	defer file.Close()

	lines, err := readLines(file)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.InputUnreachable, "reading local file "+location, err)
	}

	return &Document{
		Source:  location,
		BaseURI: "",
		Lines:   lines,
		Kind:    Classify(lines),
	}, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// baseOfURL strips the final path segment from a playlist URL, giving
// the base URI relative segment/variant references resolve against.
func baseOfURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	idx := strings.LastIndex(u.Path, "/")
	if idx >= 0 {
		u.Path = u.Path[:idx+1]
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
