// Package codec defines the interfaces between the segment ingestion core
// and posting-list encoders. The core drives an Encoder term by term and
// treats the per-term output context as opaque; codecs own the index wire
// format, the terms dictionary layout and their identifier.
package codec

import (
	"bytes"
	"io"
)

// TermIndexCtx is the per-term output context an Encoder produces. The
// planner only reads ChunkSize (to sanity-check the final index file size);
// everything else is codec-private.
type TermIndexCtx struct {
	// Documents is the number of documents posted for the term.
	Documents uint32
	// ChunkOffset is the term chunk's offset in the index file.
	ChunkOffset uint32
	// ChunkSize is the term chunk's size in bytes.
	ChunkSize uint32
	// Payload carries any extra codec-private state.
	Payload []byte
}

// TermMeta pairs a term with its output context for dictionary persistence.
type TermMeta struct {
	Term []byte
	Ctx  TermIndexCtx
}

// Encoder encodes one term run at a time. Calls arrive strictly ordered:
// BeginTerm, then for each document in ascending ID order BeginDocument,
// NewHit with non-decreasing positions, EndDocument, and finally EndTerm.
type Encoder interface {
	BeginTerm()
	BeginDocument(docID uint32)
	// NewHit records one occurrence. payload is only valid for the
	// duration of the call and is at most 8 bytes.
	NewHit(position uint32, payload []byte)
	EndDocument()
	EndTerm(ctx *TermIndexCtx)
}

// IndexSession owns the output side of one segment build.
type IndexSession interface {
	// NewEncoder returns an encoder appending to IndexOut.
	NewEncoder() Encoder
	// Begin is called once before any encoding.
	Begin() error
	// IndexOut is the encoder output buffer. The planner flushes it to
	// the index file via FlushIndex when it grows beyond the configured
	// threshold.
	IndexOut() *bytes.Buffer
	// FlushIndex writes and drains IndexOut.
	FlushIndex(w io.Writer) error
	// PersistTerms writes the terms dictionary for the segment.
	PersistTerms(terms []TermMeta) error
	// CodecIdentifier names the codec in the segment's id metadata file.
	CodecIdentifier() string
	// BasePath is the directory the segment is written under.
	BasePath() string
	// End is called once, after PersistTerms and the final index flush and
	// before the segment's metadata files are written and the index file
	// is synced and renamed into place.
	End() error
}
