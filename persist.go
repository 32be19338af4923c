package lexgo

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/internal/fs"
	"github.com/hupe1980/lexgo/updates"
)

// Segment file names written under the codec session's base path.
const (
	// IndexFile holds the concatenated per-term encoded chunks. It is
	// written as IndexFileTemp and renamed into place after fsync.
	IndexFile     = "index"
	IndexFileTemp = "index.t"

	// UpdatedDocumentsFile holds the packed bitmap of replaced and erased
	// document IDs. Absent when the session updated nothing.
	UpdatedDocumentsFile = "updated_documents.ids"

	// MetaFile holds the codec identifier and the segment field
	// statistics.
	MetaFile = "id"
)

// persistSegment writes the remaining segment artifacts and atomically
// publishes the index file. Any failure leaves index.t in place and no
// visible segment.
func (s *SegmentIndexSession) persistSegment(ctx context.Context, sess codec.IndexSession, f fs.File, indexPath string, terms map[uint32]codec.TermIndexCtx, stats *FieldStatistics) error {
	// Materialize the terms dictionary in term order.
	v := make([]codec.TermMeta, 0, len(terms))
	var chunkSum int64
	for id, tctx := range terms {
		term := s.dict.Term(id)
		if term == nil {
			return &ErrCorruptSegment{Detail: fmt.Sprintf("unknown term id %d", id)}
		}
		chunkSum += int64(tctx.ChunkSize)
		v = append(v, codec.TermMeta{Term: term, Ctx: tctx})
	}
	slices.SortFunc(v, func(a, b codec.TermMeta) int {
		return bytes.Compare(a.Term, b.Term)
	})
	if err := sess.PersistTerms(v); err != nil {
		return commitErr("persist terms", err)
	}

	if err := s.flushIndex(ctx, sess, f); err != nil {
		return err
	}
	if err := sess.End(); err != nil {
		return commitErr("end codec session", err)
	}

	if len(s.updated) > 0 {
		packed := updates.Pack(s.updated)
		if err := s.writeFile(filepath.Join(sess.BasePath(), UpdatedDocumentsFile), packed); err != nil {
			return commitErr("write updated documents", err)
		}
	}

	meta, err := encodeMeta(sess.CodecIdentifier(), stats)
	if err != nil {
		return err
	}
	if err := s.writeFile(filepath.Join(sess.BasePath(), MetaFile), meta); err != nil {
		return commitErr("write id", err)
	}

	if err := f.Sync(); err != nil {
		return commitErr("fsync index", err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return commitErr("index size", err)
	}
	if size != chunkSum {
		return &ErrCorruptSegment{
			Detail: fmt.Sprintf("index is %d bytes, encoder reported %d", size, chunkSum),
		}
	}
	if err := f.Close(); err != nil {
		return commitErr("close index", err)
	}

	if err := s.opts.fs.Rename(indexPath, strings.TrimSuffix(indexPath, ".t")); err != nil {
		return commitErr("rename index", err)
	}
	return nil
}

// encodeMeta builds the id metadata file:
// 0x01 | len | codec id | sumTermHits | totalTerms | sumTermsDocs | docsCount
// with little-endian u64 counters.
func encodeMeta(codecID string, stats *FieldStatistics) ([]byte, error) {
	if len(codecID) > math.MaxUint8 {
		return nil, invalidInput("codec identifier too long")
	}

	buf := make([]byte, 0, 2+len(codecID)+4*8)
	buf = append(buf, 1, byte(len(codecID)))
	buf = append(buf, codecID...)
	buf = binary.LittleEndian.AppendUint64(buf, stats.SumTermHits)
	buf = binary.LittleEndian.AppendUint64(buf, stats.TotalTerms)
	buf = binary.LittleEndian.AppendUint64(buf, stats.SumTermsDocs)
	buf = binary.LittleEndian.AppendUint64(buf, stats.DocsCount)
	return buf, nil
}

// DecodeMeta parses an id metadata file back into its codec identifier and
// field statistics.
func DecodeMeta(b []byte) (string, FieldStatistics, error) {
	var stats FieldStatistics
	if len(b) < 2 {
		return "", stats, &ErrCorruptSegment{Detail: "id file too short"}
	}
	if b[0] != 1 {
		return "", stats, &ErrCorruptSegment{Detail: "unsupported id file version"}
	}
	idLen := int(b[1])
	if len(b) != 2+idLen+4*8 {
		return "", stats, &ErrCorruptSegment{Detail: "id file length mismatch"}
	}
	codecID := string(b[2 : 2+idLen])
	p := 2 + idLen
	stats.SumTermHits = binary.LittleEndian.Uint64(b[p:])
	stats.TotalTerms = binary.LittleEndian.Uint64(b[p+8:])
	stats.SumTermsDocs = binary.LittleEndian.Uint64(b[p+16:])
	stats.DocsCount = binary.LittleEndian.Uint64(b[p+24:])
	return codecID, stats, nil
}

func (s *SegmentIndexSession) writeFile(path string, data []byte) error {
	f, err := s.opts.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o775)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
