package lexgo

import (
	"math"
	"os"

	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/internal/interner"
	"github.com/hupe1980/lexgo/internal/track"
)

const (
	// MaxDocID is the reserved "no document" sentinel.
	MaxDocID = math.MaxUint32

	// MaxPosition bounds hit positions; Insert rejects positions at or
	// beyond it.
	MaxPosition = 1 << 16

	// MaxPayloadSize bounds per-hit payloads, in bytes.
	MaxPayloadSize = 8

	// MaxTermLength is the longest accepted term, in bytes.
	MaxTermLength = interner.MaxTermLength

	// stageBuckets partitions in-flight hits by term hash so the per-term
	// sort at document commit works on short runs. Power of two; never
	// escapes into the staged format.
	stageBuckets = 16
)

// SegmentIndexSession accumulates document postings and builds one segment.
//
// A session is single-producer: one logical caller drives Begin, Insert,
// CommitDocument and finally Commit. Term IDs are session-local; the
// persisted segment carries term strings. After Commit (successful or not)
// the session is spent and must be discarded.
type SegmentIndexSession struct {
	opts options
	log  *Logger

	dict  *interner.Interner
	guard *track.Tracker

	stage     []byte
	spillFile fs.File

	buckets    [stageBuckets][]pendingHit
	payloadBuf []byte

	updated []uint32

	stagedMem int64
	spent     bool
}

type pendingHit struct {
	termID     uint32
	position   uint32
	payloadOff uint32
	payloadLen uint8
}

// NewSegmentIndexSession creates an empty session.
func NewSegmentIndexSession(optFns ...Option) *SegmentIndexSession {
	o := options{
		tempDir: os.TempDir(),
		logger:  NoopLogger(),
		fs:      fs.Default,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	return &SegmentIndexSession{
		opts:  o,
		log:   o.logger,
		dict:  interner.New(),
		guard: track.New(),
	}
}

// TermID interns term and returns its session-local ID. IDs are dense,
// assigned from 1 in first-seen order; 0 is never returned. The term bytes
// are copied, so the caller may reuse its buffer.
func (s *SegmentIndexSession) TermID(term []byte) (uint32, error) {
	id, err := s.dict.Intern(term)
	if err != nil {
		return 0, invalidInputErr("term", err)
	}
	return id, nil
}

// Term returns the term bytes for a session-local ID, or nil if the ID was
// never assigned. The returned slice must not be modified.
func (s *SegmentIndexSession) Term(id uint32) []byte {
	return s.dict.Term(id)
}

// Begin opens a proxy for staging one document's postings. Hits buffered by
// an earlier proxy that was never committed are discarded.
func (s *SegmentIndexSession) Begin(docID uint32) *DocumentProxy {
	for i := range s.buckets {
		s.buckets[i] = s.buckets[i][:0]
	}
	s.payloadBuf = s.payloadBuf[:0]
	return &DocumentProxy{s: s, docID: docID}
}

// CommitDocument stages the proxy's postings for a new document.
func (s *SegmentIndexSession) CommitDocument(p *DocumentProxy) error {
	return s.commitDocument(p, false)
}

// ReplaceDocument stages the proxy's postings and records the document ID in
// the session's updated set, masking the document in older segments.
func (s *SegmentIndexSession) ReplaceDocument(p *DocumentProxy) error {
	return s.commitDocument(p, true)
}

// Erase records docID in the updated set without staging any postings,
// deleting the document from older segments.
func (s *SegmentIndexSession) Erase(docID uint32) error {
	if s.spent {
		return ErrSessionSpent
	}
	if !s.guard.TryClaim(docID) {
		return ErrDuplicateDocument
	}
	s.updated = append(s.updated, docID)
	s.log.Debug("document erased", "docid", docID)
	return nil
}

// UpdatedDocumentCount returns the number of replaced or erased documents
// recorded so far.
func (s *SegmentIndexSession) UpdatedDocumentCount() int {
	return len(s.updated)
}

func (s *SegmentIndexSession) chargeMemory(n int64) error {
	if err := s.opts.controller.AcquireMemory(n); err != nil {
		return err
	}
	s.stagedMem += n
	return nil
}

func (s *SegmentIndexSession) releaseMemory(n int64) {
	if n > s.stagedMem {
		n = s.stagedMem
	}
	s.opts.controller.ReleaseMemory(n)
	s.stagedMem -= n
}
