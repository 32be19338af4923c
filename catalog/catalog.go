// Package catalog records committed segments so readers can discover them.
// Registration is write-once: a segment ID is registered exactly once, with
// a conditional put on backends that support it.
package catalog

import (
	"context"
	"errors"

	"github.com/hupe1980/lexgo"
)

var (
	// ErrSegmentExists is returned when a segment ID is registered twice.
	ErrSegmentExists = errors.New("catalog: segment already registered")
	// ErrNotFound is returned when a segment ID is unknown.
	ErrNotFound = errors.New("catalog: segment not found")
)

// SegmentInfo describes one committed segment.
type SegmentInfo struct {
	// ID uniquely names the segment within the catalog.
	ID string
	// BasePath is where the segment's files live (directory or blob
	// prefix).
	BasePath string
	// Codec is the codec identifier from the segment's id file.
	Codec string
	// Stats are the segment's field statistics.
	Stats lexgo.FieldStatistics
}

// Catalog registers and looks up committed segments.
type Catalog interface {
	// Register records info. Returns ErrSegmentExists if info.ID is
	// already registered.
	Register(ctx context.Context, info SegmentInfo) error
	// Get returns the registered info for id.
	Get(ctx context.Context, id string) (SegmentInfo, error)
}
