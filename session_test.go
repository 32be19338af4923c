package lexgo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/codec"
)

// recordingSession captures the encoder call sequence for assertions.
type recordingSession struct {
	basePath string
	out      bytes.Buffer
	calls    []string
	terms    [][]byte
	began    bool
	ended    bool
}

func newRecordingSession(basePath string) *recordingSession {
	return &recordingSession{basePath: basePath}
}

var _ codec.IndexSession = (*recordingSession)(nil)

func (r *recordingSession) NewEncoder() codec.Encoder  { return &recordingEncoder{r: r} }
func (r *recordingSession) Begin() error               { r.began = true; return nil }
func (r *recordingSession) IndexOut() *bytes.Buffer    { return &r.out }
func (r *recordingSession) CodecIdentifier() string    { return "recording:1" }
func (r *recordingSession) BasePath() string           { return r.basePath }
func (r *recordingSession) End() error                 { r.ended = true; return nil }
func (r *recordingSession) FlushIndex(io.Writer) error { r.out.Reset(); return nil }

func (r *recordingSession) PersistTerms(terms []codec.TermMeta) error {
	for _, tm := range terms {
		r.terms = append(r.terms, append([]byte(nil), tm.Term...))
	}
	return nil
}

type recordingEncoder struct {
	r *recordingSession
}

func (e *recordingEncoder) BeginTerm() {
	e.r.calls = append(e.r.calls, "begin_term")
}

func (e *recordingEncoder) BeginDocument(docID uint32) {
	e.r.calls = append(e.r.calls, fmt.Sprintf("begin_doc %d", docID))
}

func (e *recordingEncoder) NewHit(position uint32, payload []byte) {
	e.r.calls = append(e.r.calls, fmt.Sprintf("hit %d %q", position, payload))
}

func (e *recordingEncoder) EndDocument() {
	e.r.calls = append(e.r.calls, "end_doc")
}

func (e *recordingEncoder) EndTerm(ctx *codec.TermIndexCtx) {
	e.r.calls = append(e.r.calls, "end_term")
	*ctx = codec.TermIndexCtx{}
}

func TestSingleDocumentTwoTerms(t *testing.T) {
	sess := NewSegmentIndexSession()

	doc := sess.Begin(10)
	a, err := sess.TermID([]byte("a"))
	require.NoError(t, err)
	b, err := sess.TermID([]byte("b"))
	require.NoError(t, err)

	require.NoError(t, doc.Insert(a, 1, nil))
	require.NoError(t, doc.Insert(b, 2, []byte("x")))
	require.NoError(t, sess.CommitDocument(doc))

	rec := newRecordingSession(t.TempDir())
	stats, err := sess.Commit(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin_term",
		"begin_doc 10",
		`hit 1 ""`,
		"end_doc",
		"end_term",
		"begin_term",
		"begin_doc 10",
		`hit 2 "x"`,
		"end_doc",
		"end_term",
	}, rec.calls)

	assert.Equal(t, FieldStatistics{
		SumTermHits:  2,
		TotalTerms:   2,
		SumTermsDocs: 2,
		DocsCount:    1,
	}, stats)

	assert.True(t, rec.began)
	assert.True(t, rec.ended)
	assert.ElementsMatch(t, [][]byte{[]byte("a"), []byte("b")}, rec.terms)
}

func TestDuplicateDocument(t *testing.T) {
	sess := NewSegmentIndexSession()

	doc := sess.Begin(5)
	require.NoError(t, doc.InsertTerm([]byte("a"), 1, nil))
	require.NoError(t, sess.CommitDocument(doc))

	// Interleave another ID; the duplicate must still be caught.
	other := sess.Begin(6)
	require.NoError(t, other.InsertTerm([]byte("a"), 1, nil))
	require.NoError(t, sess.CommitDocument(other))

	dup := sess.Begin(5)
	require.NoError(t, dup.InsertTerm([]byte("a"), 1, nil))
	assert.ErrorIs(t, sess.CommitDocument(dup), ErrDuplicateDocument)
}

func TestEraseConflictsWithCommit(t *testing.T) {
	sess := NewSegmentIndexSession()

	require.NoError(t, sess.Erase(7))
	assert.ErrorIs(t, sess.Erase(7), ErrDuplicateDocument)

	doc := sess.Begin(7)
	require.NoError(t, doc.InsertTerm([]byte("a"), 1, nil))
	assert.ErrorIs(t, sess.CommitDocument(doc), ErrDuplicateDocument)
}

func TestPositionOverlaps(t *testing.T) {
	sess := NewSegmentIndexSession()

	doc := sess.Begin(100)
	a, _ := sess.TermID([]byte("a"))
	require.NoError(t, doc.Insert(a, 1, nil))
	require.NoError(t, doc.Insert(a, 1, nil))
	require.NoError(t, sess.CommitDocument(doc))

	assert.Equal(t, uint32(1), doc.Stats().PositionOverlaps)

	rec := newRecordingSession(t.TempDir())
	_, err := sess.Commit(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin_term",
		"begin_doc 100",
		`hit 1 ""`,
		`hit 1 ""`,
		"end_doc",
		"end_term",
	}, rec.calls)
}

func TestInsertValidation(t *testing.T) {
	sess := NewSegmentIndexSession()
	doc := sess.Begin(1)

	var invalid *ErrInvalidInput

	assert.ErrorAs(t, doc.Insert(0, 1, nil), &invalid)
	assert.ErrorAs(t, doc.Insert(1, MaxPosition, nil), &invalid)
	assert.ErrorAs(t, doc.Insert(1, 1, []byte("123456789")), &invalid)

	_, err := sess.TermID(nil)
	assert.ErrorAs(t, err, &invalid)

	long := bytes.Repeat([]byte("x"), MaxTermLength+1)
	_, err = sess.TermID(long)
	assert.ErrorAs(t, err, &invalid)
}

func TestTermIDsAreDense(t *testing.T) {
	sess := NewSegmentIndexSession()

	a, err := sess.TermID([]byte("a"))
	require.NoError(t, err)
	b, err := sess.TermID([]byte("b"))
	require.NoError(t, err)
	a2, err := sess.TermID([]byte("a"))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
	assert.Equal(t, a, a2)

	assert.Equal(t, []byte("a"), sess.Term(a))
	assert.Equal(t, []byte("b"), sess.Term(b))
	assert.Nil(t, sess.Term(0))
	assert.Nil(t, sess.Term(3))
}

func TestDocumentOrderingPerTerm(t *testing.T) {
	sess := NewSegmentIndexSession()

	// Commit out of docID order; each term's documents must still reach
	// the encoder in ascending order.
	for _, docID := range []uint32{30, 10, 20} {
		doc := sess.Begin(docID)
		require.NoError(t, doc.InsertTerm([]byte("shared"), 1, nil))
		require.NoError(t, sess.CommitDocument(doc))
	}

	rec := newRecordingSession(t.TempDir())
	stats, err := sess.Commit(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin_term",
		"begin_doc 10",
		`hit 1 ""`,
		"end_doc",
		"begin_doc 20",
		`hit 1 ""`,
		"end_doc",
		"begin_doc 30",
		`hit 1 ""`,
		"end_doc",
		"end_term",
	}, rec.calls)
	assert.Equal(t, uint64(3), stats.SumTermsDocs)
	assert.Equal(t, uint64(1), stats.TotalTerms)
}

func TestEmptyDocumentNotCounted(t *testing.T) {
	sess := NewSegmentIndexSession()

	empty := sess.Begin(1)
	require.NoError(t, sess.CommitDocument(empty))

	doc := sess.Begin(2)
	require.NoError(t, doc.InsertTerm([]byte("a"), 1, nil))
	require.NoError(t, sess.CommitDocument(doc))

	rec := newRecordingSession(t.TempDir())
	stats, err := sess.Commit(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.DocsCount)
}

func TestSessionSpentAfterCommit(t *testing.T) {
	sess := NewSegmentIndexSession()

	doc := sess.Begin(1)
	require.NoError(t, doc.InsertTerm([]byte("a"), 1, nil))
	require.NoError(t, sess.CommitDocument(doc))

	_, err := sess.Commit(context.Background(), newRecordingSession(t.TempDir()))
	require.NoError(t, err)

	assert.ErrorIs(t, sess.Erase(9), ErrSessionSpent)

	doc2 := sess.Begin(2)
	require.NoError(t, doc2.InsertTerm([]byte("b"), 1, nil))
	assert.ErrorIs(t, sess.CommitDocument(doc2), ErrSessionSpent)

	_, err = sess.Commit(context.Background(), newRecordingSession(t.TempDir()))
	assert.ErrorIs(t, err, ErrSessionSpent)
}

func TestDocumentStats(t *testing.T) {
	sess := NewSegmentIndexSession()

	doc := sess.Begin(1)
	a, _ := sess.TermID([]byte("a"))
	b, _ := sess.TermID([]byte("b"))
	require.NoError(t, doc.Insert(a, 1, nil))
	require.NoError(t, doc.Insert(a, 2, nil))
	require.NoError(t, doc.Insert(a, 3, nil))
	require.NoError(t, doc.Insert(b, 4, nil))
	require.NoError(t, sess.CommitDocument(doc))

	ds := doc.Stats()
	assert.Equal(t, uint32(2), ds.DistinctTerms)
	assert.Equal(t, uint32(4), ds.PositionHits)
	assert.Equal(t, uint32(3), ds.MaxTermFreq)
	assert.Zero(t, ds.PositionOverlaps)
}
