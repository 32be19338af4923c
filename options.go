package lexgo

import (
	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/resource"
)

type options struct {
	spillThreshold int
	flushThreshold int
	tempDir        string
	logger         *Logger
	fs             fs.FileSystem
	controller     *resource.Controller
}

// Option configures a SegmentIndexSession.
type Option func(*options)

// WithSpillThreshold sets the staging-buffer size in bytes above which the
// session spills staged documents to an unlinked temp file. 0 (the default)
// keeps everything in memory.
//
// Spilling is transparent: commit output is byte-identical with or without
// it.
func WithSpillThreshold(n int) Option {
	return func(o *options) {
		o.spillThreshold = n
	}
}

// WithFlushThreshold sets the encoder output-buffer size in bytes above
// which the commit planner flushes the buffer to the index file between
// terms. 0 (the default) buffers the whole index in memory until commit
// finishes.
func WithFlushThreshold(n int) Option {
	return func(o *options) {
		o.flushThreshold = n
	}
}

// WithTempDir sets the directory for the spill file.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithLogger sets the session logger. Defaults to NoopLogger().
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileSystem replaces the file system used for the spill file and the
// segment files. Intended for fault-injection tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithResourceController attaches a resource controller. Staging-buffer
// growth is charged against its memory budget and spill/flush writes go
// through its IO limiter. A nil controller disables both.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}
