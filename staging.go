package lexgo

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hupe1980/lexgo/internal/varint"
)

// Staging record layout, one per committed document:
//
//	docid      : u32 LE
//	term count : u16 LE (back-patched)
//	per term:
//	  term id   : u32 LE
//	  hit count : u16 LE (back-patched)
//	  per hit:
//	    delta mask   : varint; low bit set = same payload size as previous
//	    payload size : varint, present iff low bit clear
//	    payload      : payload size bytes
//
// deltaMask >> 1 is the position delta from the previous hit of the same
// term. The same-size run resets at each term: the first hit always carries
// an explicit size.
func (s *SegmentIndexSession) commitDocument(p *DocumentProxy, replace bool) error {
	if s.spent {
		return ErrSessionSpent
	}
	if p == nil || p.s != s {
		return invalidInput("proxy does not belong to this session")
	}

	if !s.guard.TryClaim(p.docID) {
		return ErrDuplicateDocument
	}
	if replace {
		s.updated = append(s.updated, p.docID)
	}

	before := len(s.stage)
	s.stage = binary.LittleEndian.AppendUint32(s.stage, p.docID)
	termCountOff := len(s.stage)
	s.stage = append(s.stage, 0, 0)

	ds := DocumentStats{PositionOverlaps: p.stats.PositionOverlaps}
	terms := 0

	for b := range s.buckets {
		v := s.buckets[b]
		slices.SortFunc(v, func(x, y pendingHit) int {
			if x.termID != y.termID {
				return cmp.Compare(x.termID, y.termID)
			}
			return cmp.Compare(x.position, y.position)
		})

		for i := 0; i < len(v); {
			termID := v[i].termID
			s.stage = binary.LittleEndian.AppendUint32(s.stage, termID)
			hitCountOff := len(s.stage)
			s.stage = append(s.stage, 0, 0)

			prevPos := uint32(0)
			prevSize := -1
			hits := 0
			posHits := uint32(0)

			for ; i < len(v) && v[i].termID == termID; i++ {
				h := v[i]
				delta := h.position - prevPos
				prevPos = h.position
				if h.position != 0 {
					posHits++
				}

				if int(h.payloadLen) != prevSize {
					s.stage = varint.AppendUint32(s.stage, delta<<1)
					s.stage = varint.AppendUint32(s.stage, uint32(h.payloadLen))
					prevSize = int(h.payloadLen)
				} else {
					s.stage = varint.AppendUint32(s.stage, delta<<1|1)
				}
				if h.payloadLen > 0 {
					s.stage = append(s.stage, s.payloadBuf[h.payloadOff:h.payloadOff+uint32(h.payloadLen)]...)
				}
				hits++
			}

			if hits > math.MaxUint16 {
				return invalidInput("too many hits for one term in one document")
			}
			binary.LittleEndian.PutUint16(s.stage[hitCountOff:], uint16(hits))

			if posHits > 0 {
				ds.DistinctTerms++
				ds.PositionHits += posHits
				if posHits > ds.MaxTermFreq {
					ds.MaxTermFreq = posHits
				}
			}
			terms++
		}
		s.buckets[b] = v[:0]
	}

	if terms > math.MaxUint16 {
		return invalidInput("too many terms in one document")
	}
	binary.LittleEndian.PutUint16(s.stage[termCountOff:], uint16(terms))
	p.stats = ds

	if err := s.chargeMemory(int64(len(s.stage) - before)); err != nil {
		// Over the memory budget: spilling frees the staged bytes.
		if s.opts.spillThreshold <= 0 {
			return err
		}
		return s.spillStage()
	}

	s.log.Debug("document committed",
		"docid", p.docID,
		"terms", terms,
		"replace", replace,
	)

	if s.opts.spillThreshold > 0 && len(s.stage) > s.opts.spillThreshold {
		return s.spillStage()
	}
	return nil
}

// spillStage appends the staging buffer to the session's backing temp file
// and clears it. The file is created once per session and unlinked
// immediately; it vanishes when the session is dropped.
func (s *SegmentIndexSession) spillStage() error {
	if len(s.stage) == 0 {
		return nil
	}

	if s.spillFile == nil {
		name := filepath.Join(s.opts.tempDir,
			fmt.Sprintf("index-intermediate.%d.%d.tmp", time.Now().UnixMicro(), os.Getpid()))
		f, err := s.opts.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_EXCL, 0o755)
		if err != nil {
			return spillErr(err)
		}
		// Unlink it here; the descriptor keeps it alive.
		_ = s.opts.fs.Remove(name)
		s.spillFile = f
		s.log.Debug("spill file created", "path", name)
	}

	if err := s.opts.controller.AcquireIO(context.Background(), len(s.stage)); err != nil {
		return spillErr(err)
	}
	n, err := s.spillFile.Write(s.stage)
	if err != nil {
		return spillErr(err)
	}
	if n != len(s.stage) {
		return spillErr(io.ErrShortWrite)
	}

	s.log.Debug("stage spilled", "bytes", n)
	s.releaseMemory(int64(len(s.stage)))
	s.stage = s.stage[:0]
	return nil
}
