package lexgo

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/internal/mmap"
	"github.com/hupe1980/lexgo/internal/varint"
)

// planPartitions is the number of term-hash partitions the planner sorts
// independently. Power of two, at most 32; never escapes into the on-disk
// format.
const planPartitions = 32

// segmentData references one (term, document) hit group inside a staged
// source range.
type segmentData struct {
	termID     uint32
	docID      uint32
	hitsOffset uint32
	hitsCount  uint16
	rangeIdx   uint8
}

// Commit regroups every staged posting by term, drives the codec encoder
// over them and persists the segment under sess.BasePath(). The session is
// spent afterwards, whether or not the commit succeeded.
func (s *SegmentIndexSession) Commit(ctx context.Context, sess codec.IndexSession) (FieldStatistics, error) {
	var stats FieldStatistics

	if s.spent {
		return stats, ErrSessionSpent
	}
	s.spent = true
	defer func() {
		if s.spillFile != nil {
			_ = s.spillFile.Close()
			s.spillFile = nil
		}
		s.releaseMemory(s.stagedMem)
	}()

	log := s.log.WithSegment(sess.BasePath())

	if err := sess.Begin(); err != nil {
		return stats, commitErr("begin", err)
	}

	indexPath := filepath.Join(sess.BasePath(), IndexFileTemp)
	f, err := s.opts.fs.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o775)
	if err != nil {
		return stats, commitErr("create index", err)
	}
	defer f.Close()

	// Source ranges: the residual staging buffer plus, if documents were
	// spilled, the mapped backing file. Both stay readable until the
	// encode phase finishes.
	ranges := make([][]byte, 0, 2)
	if len(s.stage) > 0 {
		ranges = append(ranges, s.stage)
	}

	var mapping *mmap.Mapping
	defer func() { _ = mapping.Close() }()

	if s.spillFile != nil {
		size, err := s.spillFile.Seek(0, io.SeekEnd)
		if err != nil {
			return stats, commitErr("spill size", err)
		}
		if size > 0 {
			mapping, err = mmap.Map(s.spillFile.Fd(), int(size))
			if err == nil {
				mapping.AdviseSequential()
				ranges = append(ranges, mapping.Bytes())
			} else {
				// No mmap on this platform; fall back to reading.
				buf := make([]byte, size)
				if _, err := s.spillFile.ReadAt(buf, 0); err != nil {
					return stats, commitErr("read spill", err)
				}
				ranges = append(ranges, buf)
			}
		}
	}

	// Collect phase: parse document frames and reference every (term,
	// document) hit group into its term-hash partition.
	started := time.Now()
	var all [planPartitions][]segmentData
	for ri, data := range ranges {
		if err := collectRange(data, uint8(ri), &all, &stats); err != nil {
			return stats, err
		}
	}
	log.Debug("postings collected", "took", time.Since(started))

	// Sort phase: partitions are disjoint, so they sort without
	// coordination.
	started = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := range all {
		part := all[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slices.SortFunc(part, func(a, b segmentData) int {
				if a.termID != b.termID {
					return cmp.Compare(a.termID, b.termID)
				}
				return cmp.Compare(a.docID, b.docID)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	log.Debug("postings sorted", "took", time.Since(started))

	// Encode phase: serial by design; the encoder appends term chunks to
	// one output buffer.
	started = time.Now()
	terms := make(map[uint32]codec.TermIndexCtx)
	enc := sess.NewEncoder()
	for pi := range all {
		v := all[pi]
		for i := 0; i < len(v); {
			termID := v[i].termID
			enc.BeginTerm()

			prevDoc := int64(-1)
			for ; i < len(v) && v[i].termID == termID; i++ {
				e := v[i]
				if int64(e.docID) <= prevDoc {
					return stats, &ErrCorruptSegment{
						Detail: fmt.Sprintf("term %d: document %d out of order", termID, e.docID),
					}
				}
				prevDoc = int64(e.docID)

				if err := encodeDocument(enc, ranges[e.rangeIdx], e); err != nil {
					return stats, err
				}
				stats.SumTermHits += uint64(e.hitsCount)
				stats.SumTermsDocs++
			}

			var tctx codec.TermIndexCtx
			enc.EndTerm(&tctx)
			terms[termID] = tctx
			stats.TotalTerms++

			if s.opts.flushThreshold > 0 && sess.IndexOut().Len() > s.opts.flushThreshold {
				if err := s.flushIndex(ctx, sess, f); err != nil {
					return stats, err
				}
			}
		}
	}
	log.Debug("postings encoded", "took", time.Since(started), "terms", stats.TotalTerms)

	if err := s.persistSegment(ctx, sess, f, indexPath, terms, &stats); err != nil {
		return stats, err
	}

	log.Info("segment committed",
		"docs", stats.DocsCount,
		"terms", stats.TotalTerms,
		"updated", len(s.updated),
	)
	return stats, nil
}

// collectRange walks one staged range, validating frames as it goes.
func collectRange(data []byte, rangeIdx uint8, all *[planPartitions][]segmentData, stats *FieldStatistics) error {
	p := 0
	for p < len(data) {
		if p+6 > len(data) {
			return &ErrCorruptSegment{Detail: "truncated document frame"}
		}
		termsCnt := int(binary.LittleEndian.Uint16(data[p+4:]))
		docID := binary.LittleEndian.Uint32(data[p:])
		p += 6

		if termsCnt == 0 {
			// Erased or empty document.
			continue
		}
		stats.DocsCount++

		for t := 0; t < termsCnt; t++ {
			if p+6 > len(data) {
				return &ErrCorruptSegment{Detail: "truncated term frame"}
			}
			termID := binary.LittleEndian.Uint32(data[p:])
			hitsCnt := binary.LittleEndian.Uint16(data[p+4:])
			p += 6

			if termID == 0 || hitsCnt == 0 {
				return &ErrCorruptSegment{Detail: "invalid term frame"}
			}

			base := p
			size := uint32(0)
			for h := 0; h < int(hitsCnt); h++ {
				deltaMask, n := varint.Uint32(data[p:])
				if n == 0 {
					return &ErrCorruptSegment{Detail: "bad hit delta"}
				}
				p += n
				if deltaMask&1 == 0 {
					size, n = varint.Uint32(data[p:])
					if n == 0 {
						return &ErrCorruptSegment{Detail: "bad payload size"}
					}
					p += n
				}
				p += int(size)
				if p > len(data) {
					return &ErrCorruptSegment{Detail: "truncated payload"}
				}
			}

			all[termID&(planPartitions-1)] = append(all[termID&(planPartitions-1)], segmentData{
				termID:     termID,
				docID:      docID,
				hitsOffset: uint32(base),
				hitsCount:  hitsCnt,
				rangeIdx:   rangeIdx,
			})
		}
	}
	return nil
}

// encodeDocument re-decodes one staged hit group and replays it into the
// encoder.
func encodeDocument(enc codec.Encoder, data []byte, e segmentData) error {
	enc.BeginDocument(e.docID)

	p := int(e.hitsOffset)
	pos := uint32(0)
	size := uint32(0)
	for h := 0; h < int(e.hitsCount); h++ {
		deltaMask, n := varint.Uint32(data[p:])
		if n == 0 {
			return &ErrCorruptSegment{Detail: "bad hit delta"}
		}
		p += n
		if deltaMask&1 == 0 {
			size, n = varint.Uint32(data[p:])
			if n == 0 {
				return &ErrCorruptSegment{Detail: "bad payload size"}
			}
			p += n
		}
		pos += deltaMask >> 1

		var payload []byte
		if size > 0 {
			if p+int(size) > len(data) {
				return &ErrCorruptSegment{Detail: "truncated payload"}
			}
			payload = data[p : p+int(size)]
			p += int(size)
		}
		enc.NewHit(pos, payload)
	}

	enc.EndDocument()
	return nil
}

func (s *SegmentIndexSession) flushIndex(ctx context.Context, sess codec.IndexSession, w io.Writer) error {
	n := sess.IndexOut().Len()
	if n == 0 {
		return nil
	}
	if err := s.opts.controller.AcquireIO(ctx, n); err != nil {
		return commitErr("io limit", err)
	}
	if err := sess.FlushIndex(w); err != nil {
		return commitErr("flush index", err)
	}
	return nil
}
