// Package postings is the reference posting-list codec: varint-delta
// document IDs, hit positions and payloads, with lz4 block compression for
// large term chunks and a zstd-compressed terms dictionary.
package postings

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/internal/varint"
)

const (
	// Identifier names this codec in segment metadata.
	Identifier = "postings:1"

	// TermsFile is the dictionary file written under the base path.
	TermsFile = "terms"

	// blockHeaderSize prefixes every term chunk:
	// [UncompressedSize uint32][CompressedSize uint32][Data...]
	// CompressedSize == 0 means the chunk is stored raw.
	blockHeaderSize = 8

	// Chunks below this size are never worth compressing.
	compressMinSize = 512
)

// Session implements codec.IndexSession for the reference codec.
type Session struct {
	basePath string
	out      bytes.Buffer
	flushed  uint32
}

// NewSession creates a session writing a segment under basePath.
func NewSession(basePath string) *Session {
	return &Session{basePath: basePath}
}

var _ codec.IndexSession = (*Session)(nil)

// NewEncoder returns an encoder appending to this session's output buffer.
func (s *Session) NewEncoder() codec.Encoder {
	return &encoder{s: s}
}

// Begin creates the segment directory.
func (s *Session) Begin() error {
	return os.MkdirAll(s.basePath, 0o775)
}

// IndexOut returns the encoder output buffer.
func (s *Session) IndexOut() *bytes.Buffer { return &s.out }

// FlushIndex writes and drains the output buffer.
func (s *Session) FlushIndex(w io.Writer) error {
	if s.out.Len() == 0 {
		return nil
	}
	n, err := w.Write(s.out.Bytes())
	if err != nil {
		return err
	}
	if n != s.out.Len() {
		return io.ErrShortWrite
	}
	s.flushed += uint32(n)
	s.out.Reset()
	return nil
}

// PersistTerms writes the terms dictionary as a zstd stream of
// (term, documents, chunk offset, chunk size) entries.
func (s *Session) PersistTerms(terms []codec.TermMeta) error {
	f, err := os.Create(filepath.Join(s.basePath, TermsFile))
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}

	var scratch []byte
	for _, tm := range terms {
		scratch = scratch[:0]
		scratch = varint.AppendUint32(scratch, uint32(len(tm.Term)))
		scratch = append(scratch, tm.Term...)
		scratch = varint.AppendUint32(scratch, tm.Ctx.Documents)
		scratch = varint.AppendUint32(scratch, tm.Ctx.ChunkOffset)
		scratch = varint.AppendUint32(scratch, tm.Ctx.ChunkSize)
		if _, err := zw.Write(scratch); err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CodecIdentifier returns the codec name recorded in segment metadata.
func (s *Session) CodecIdentifier() string { return Identifier }

// BasePath returns the segment directory.
func (s *Session) BasePath() string { return s.basePath }

// End finishes the session.
func (s *Session) End() error { return nil }

type encoder struct {
	s *Session

	chunk    []byte
	docBuf   []byte
	chunkOff uint32
	prevDoc  uint32
	curDoc   uint32
	docCount uint32
	hitCount uint32
	prevPos  uint32
}

func (e *encoder) BeginTerm() {
	e.chunk = e.chunk[:0]
	e.prevDoc = 0
	e.docCount = 0
	e.chunkOff = e.s.flushed + uint32(e.s.out.Len())
}

func (e *encoder) BeginDocument(docID uint32) {
	e.docBuf = e.docBuf[:0]
	e.curDoc = docID
	e.hitCount = 0
	e.prevPos = 0
}

func (e *encoder) NewHit(position uint32, payload []byte) {
	e.docBuf = varint.AppendUint32(e.docBuf, position-e.prevPos)
	e.prevPos = position
	e.docBuf = varint.AppendUint32(e.docBuf, uint32(len(payload)))
	e.docBuf = append(e.docBuf, payload...)
	e.hitCount++
}

func (e *encoder) EndDocument() {
	e.chunk = varint.AppendUint32(e.chunk, e.curDoc-e.prevDoc)
	e.prevDoc = e.curDoc
	e.chunk = varint.AppendUint32(e.chunk, e.hitCount)
	e.chunk = append(e.chunk, e.docBuf...)
	e.docCount++
}

func (e *encoder) EndTerm(ctx *codec.TermIndexCtx) {
	block := packBlock(e.chunk)
	e.s.out.Write(block)

	ctx.Documents = e.docCount
	ctx.ChunkOffset = e.chunkOff
	ctx.ChunkSize = uint32(len(block))
	ctx.Payload = nil
}

// packBlock wraps data in a block header, lz4-compressing it when that
// actually saves space.
func packBlock(data []byte) []byte {
	if len(data) >= compressMinSize {
		bound := lz4.CompressBlockBound(len(data))
		compressed := make([]byte, blockHeaderSize+bound)
		n, err := lz4.CompressBlock(data, compressed[blockHeaderSize:], nil)
		if err == nil && n > 0 && float64(n) <= float64(len(data))*0.9 {
			binary.LittleEndian.PutUint32(compressed[0:], uint32(len(data)))
			binary.LittleEndian.PutUint32(compressed[4:], uint32(n))
			return compressed[:blockHeaderSize+n]
		}
	}

	out := make([]byte, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], 0)
	copy(out[blockHeaderSize:], data)
	return out
}

// unpackBlock is the inverse of packBlock.
func unpackBlock(b []byte) ([]byte, error) {
	if len(b) < blockHeaderSize {
		return nil, fmt.Errorf("postings: block too small")
	}
	uncompressedSize := binary.LittleEndian.Uint32(b[0:])
	compressedSize := binary.LittleEndian.Uint32(b[4:])

	if compressedSize == 0 {
		if uint32(len(b)) < blockHeaderSize+uncompressedSize {
			return nil, fmt.Errorf("postings: raw block truncated")
		}
		return b[blockHeaderSize : blockHeaderSize+uncompressedSize], nil
	}

	if uint32(len(b)) < blockHeaderSize+compressedSize {
		return nil, fmt.Errorf("postings: compressed block truncated")
	}
	out := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(b[blockHeaderSize:blockHeaderSize+compressedSize], out)
	if err != nil {
		return nil, err
	}
	if uint32(n) != uncompressedSize {
		return nil, fmt.Errorf("postings: decompressed size mismatch")
	}
	return out, nil
}

// Hit is one decoded term occurrence.
type Hit struct {
	Position uint32
	Payload  []byte
}

// Posting is one decoded (document, hits) pair.
type Posting struct {
	DocID uint32
	Hits  []Hit
}

// ReadChunk decodes one term chunk as written by the encoder.
func ReadChunk(b []byte) ([]Posting, error) {
	data, err := unpackBlock(b)
	if err != nil {
		return nil, err
	}

	var out []Posting
	docID := uint32(0)
	p := 0
	for p < len(data) {
		delta, n := varint.Uint32(data[p:])
		if n == 0 {
			return nil, fmt.Errorf("postings: bad doc delta")
		}
		p += n
		docID += delta

		hitCount, n := varint.Uint32(data[p:])
		if n == 0 {
			return nil, fmt.Errorf("postings: bad hit count")
		}
		p += n

		post := Posting{DocID: docID}
		pos := uint32(0)
		for h := uint32(0); h < hitCount; h++ {
			posDelta, n := varint.Uint32(data[p:])
			if n == 0 {
				return nil, fmt.Errorf("postings: bad position delta")
			}
			p += n
			pos += posDelta

			plen, n := varint.Uint32(data[p:])
			if n == 0 || p+n+int(plen) > len(data) {
				return nil, fmt.Errorf("postings: bad payload")
			}
			p += n

			var payload []byte
			if plen > 0 {
				payload = append([]byte(nil), data[p:p+int(plen)]...)
				p += int(plen)
			}
			post.Hits = append(post.Hits, Hit{Position: pos, Payload: payload})
		}
		out = append(out, post)
	}
	return out, nil
}

// TermEntry is one decoded terms-dictionary entry.
type TermEntry struct {
	Term []byte
	Ctx  codec.TermIndexCtx
}

// ReadTerms decodes a terms dictionary written by PersistTerms.
func ReadTerms(path string) ([]TermEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	var out []TermEntry
	p := 0
	for p < len(data) {
		tlen, n := varint.Uint32(data[p:])
		if n == 0 || p+n+int(tlen) > len(data) {
			return nil, fmt.Errorf("postings: bad term entry")
		}
		p += n
		term := append([]byte(nil), data[p:p+int(tlen)]...)
		p += int(tlen)

		var vals [3]uint32
		for i := range vals {
			v, n := varint.Uint32(data[p:])
			if n == 0 {
				return nil, fmt.Errorf("postings: bad term entry")
			}
			vals[i] = v
			p += n
		}
		out = append(out, TermEntry{
			Term: term,
			Ctx: codec.TermIndexCtx{
				Documents:   vals[0],
				ChunkOffset: vals[1],
				ChunkSize:   vals[2],
			},
		})
	}
	return out, nil
}
