// Package updates packs the set of replaced or erased document IDs of an
// index session into fixed-size bitmap banks with a skip list, and answers
// ascending-monotone membership queries against the packed form.
//
// Banks cover aligned windows of BankSize*8 document IDs each; windows
// without any packed ID are not stored, so the skip list is sparse over the
// ID space but contiguous in storage. Bit j of byte k in a bank represents
// ID base + k*8 + j.
package updates

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// BankSize is the size of one bitmap bank in bytes (4096 IDs per bank).
// Must be a power of two.
const BankSize = 512

const (
	idsPerBank = BankSize * 8
	headerSize = 16
)

// ErrTruncated is returned by Unpack when the input is shorter than its
// header claims.
var ErrTruncated = errors.New("updates: truncated input")

// UpdatedDocuments is the unpacked (but still zero-copy) view of a packed
// updated-documents bitmap. All fields reference the input passed to
// Unpack.
type UpdatedDocuments struct {
	skip  []byte // BankCount little-endian uint32 bank bases
	banks []byte // BankCount banks of BankSize bytes each

	// LowestID and HighestID bound the packed set.
	LowestID  uint32
	HighestID uint32
	// BankCount is the number of stored banks.
	BankCount uint32
}

// SkipAt returns the base document ID of bank i.
func (u *UpdatedDocuments) SkipAt(i int) uint32 {
	return binary.LittleEndian.Uint32(u.skip[i*4:])
}

func (u *UpdatedDocuments) bank(i int) []byte {
	return u.banks[i*BankSize : (i+1)*BankSize]
}

// Pack sorts and deduplicates ids and returns their packed bitmap
// representation. It returns nil for an empty input.
func Pack(ids []uint32) []byte {
	if len(ids) == 0 {
		return nil
	}

	rb := roaring.BitmapOf(ids...)

	// One pass to count banks so the output is allocated exactly once.
	bankCount := uint32(0)
	prevBase := uint32(0)
	first := true
	it := rb.Iterator()
	for it.HasNext() {
		base := it.Next() &^ (idsPerBank - 1)
		if first || base != prevBase {
			bankCount++
			prevBase = base
			first = false
		}
	}

	out := make([]byte, headerSize+int(bankCount)*4+int(bankCount)*BankSize)
	binary.LittleEndian.PutUint32(out[0:], rb.Minimum())
	binary.LittleEndian.PutUint32(out[4:], rb.Maximum())
	binary.LittleEndian.PutUint32(out[8:], BankSize)
	binary.LittleEndian.PutUint32(out[12:], bankCount)

	skip := out[headerSize : headerSize+int(bankCount)*4]
	banks := out[headerSize+int(bankCount)*4:]

	bankIdx := -1
	curBase := uint32(0)
	it = rb.Iterator()
	for it.HasNext() {
		id := it.Next()
		base := id &^ (idsPerBank - 1)
		if bankIdx < 0 || base != curBase {
			bankIdx++
			curBase = base
			binary.LittleEndian.PutUint32(skip[bankIdx*4:], base)
		}
		offset := id - curBase
		banks[bankIdx*BankSize+int(offset>>3)] |= 1 << (offset & 7)
	}

	return out
}

// Unpack is the inverse of Pack. The returned view references b; b must not
// be mutated while the view or any Scanner over it is in use.
func Unpack(b []byte) (*UpdatedDocuments, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}

	bankSize := binary.LittleEndian.Uint32(b[8:])
	if bankSize != BankSize {
		return nil, fmt.Errorf("updates: unsupported bank size %d", bankSize)
	}

	bankCount := binary.LittleEndian.Uint32(b[12:])
	want := headerSize + int(bankCount)*4 + int(bankCount)*BankSize
	if len(b) < want {
		return nil, ErrTruncated
	}

	return &UpdatedDocuments{
		LowestID:  binary.LittleEndian.Uint32(b[0:]),
		HighestID: binary.LittleEndian.Uint32(b[4:]),
		BankCount: bankCount,
		skip:      b[headerSize : headerSize+int(bankCount)*4],
		banks:     b[headerSize+int(bankCount)*4 : want],
	}, nil
}
