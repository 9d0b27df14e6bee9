// Package config holds the DownloadContext configuration record: the
// validated set of knobs a single download invocation runs with. It
// follows the teacher's struct-plus-environment-overrides pattern but
// replaces free-standing fields with validating mutators, since the
// spec requires invalid values (e.g. MaxThreads <= 0) to fail loudly
// with hlserr.InvalidConfig rather than be silently clamped.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

const (
	DefaultMaxThreads = 10
	DefaultDebugPath  = "debug.log"
)

// DownloadContext is the configuration record for a single download
// invocation (spec.md §3). It is not safe for concurrent mutation while
// an invocation is in flight; callers construct one per request.
type DownloadContext struct {
	input          string
	output         string
	skipSpaceCheck bool
	debug          bool
	debugPath      string
	maxThreads     int
}

// New constructs a DownloadContext, applying defaults and environment
// overrides the way the teacher's Load does, then validating.
func New(input, output string) (*DownloadContext, error) {
	c := &DownloadContext{
		input:      input,
		output:     output,
		debugPath:  DefaultDebugPath,
		maxThreads: DefaultMaxThreads,
	}
	c.loadFromEnvironment()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DownloadContext) loadFromEnvironment() {
	if val := os.Getenv("HLSFETCH_MAX_THREADS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.maxThreads = parsed
		}
	}
	if val := os.Getenv("HLSFETCH_SKIP_SPACE_CHECK"); val != "" {
		c.skipSpaceCheck = val == "true"
	}
	if val := os.Getenv("HLSFETCH_DEBUG"); val != "" {
		c.debug = val == "true"
	}
	if val := os.Getenv("HLSFETCH_DEBUG_PATH"); val != "" {
		c.debugPath = val
	}
}

func (c *DownloadContext) validate() error {
	if c.maxThreads <= 0 {
		return hlserr.New(hlserr.InvalidConfig, "maxThreads must be positive")
	}
	if c.input == "" {
		return hlserr.New(hlserr.InvalidConfig, "input is required")
	}
	if c.output == "" {
		return hlserr.New(hlserr.InvalidConfig, "output is required")
	}
	return nil
}

// Input returns the playlist URL or local path to resolve.
func (c *DownloadContext) Input() string { return c.input }

// SetInput updates the playlist source. Empty values are rejected.
func (c *DownloadContext) SetInput(input string) error {
	if input == "" {
		return hlserr.New(hlserr.InvalidConfig, "input must not be empty")
	}
	c.input = input
	return nil
}

// Output returns the configured output path, with a ".ts" extension
// appended when the caller supplied none (spec.md §4.7).
func (c *DownloadContext) Output() string {
	if filepath.Ext(c.output) == "" {
		return c.output + ".ts"
	}
	return c.output
}

// SetOutput updates the output path. Empty values are rejected.
func (c *DownloadContext) SetOutput(output string) error {
	if output == "" {
		return hlserr.New(hlserr.InvalidConfig, "output must not be empty")
	}
	c.output = output
	return nil
}

func (c *DownloadContext) SkipSpaceCheck() bool { return c.skipSpaceCheck }

func (c *DownloadContext) SetSkipSpaceCheck(skip bool) { c.skipSpaceCheck = skip }

func (c *DownloadContext) Debug() bool { return c.debug }

func (c *DownloadContext) SetDebug(debug bool) { c.debug = debug }

func (c *DownloadContext) DebugPath() string { return c.debugPath }

// SetDebugPath updates where debug records are appended. Empty values
// are rejected since an empty path can't be opened for append.
func (c *DownloadContext) SetDebugPath(path string) error {
	if path == "" {
		return hlserr.New(hlserr.InvalidConfig, "debugPath must not be empty")
	}
	c.debugPath = path
	return nil
}

func (c *DownloadContext) MaxThreads() int { return c.maxThreads }

// SetMaxThreads updates the worker pool bound. Values <= 0 are rejected.
func (c *DownloadContext) SetMaxThreads(n int) error {
	if n <= 0 {
		return hlserr.New(hlserr.InvalidConfig, "maxThreads must be positive")
	}
	c.maxThreads = n
	return nil
}

// OutputDir returns the parent directory of the configured output path,
// creating it if necessary — callers need this both for the space guard
// (§4.5, probes free space at the parent directory) and for the fetch
// pool's per-segment temp files.
func (c *DownloadContext) OutputDir() (string, error) {
	dir := filepath.Dir(c.Output())
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", hlserr.Wrap(hlserr.InvalidConfig, "failed to create output directory", err)
	}
	return dir, nil
}
