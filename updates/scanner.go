package updates

import "sort"

// Scanner is a one-shot membership tester over one packed bitmap.
//
// Test must be called with non-decreasing document IDs; once a query
// exceeds the highest packed ID the scanner drains and answers false
// forever. Scanners are cheap values; take a fresh one per merge pass.
type Scanner struct {
	ud       *UpdatedDocuments
	curBank  []byte
	curBase  uint32
	curEnd   uint32
	maxDocID uint32
	bankIdx  int
	drained  bool
}

// NewScanner creates a Scanner positioned on the first bank of ud.
func NewScanner(ud *UpdatedDocuments) *Scanner {
	s := &Scanner{
		ud:       ud,
		maxDocID: ud.HighestID,
	}
	if ud.BankCount == 0 {
		s.drained = true
		return s
	}
	s.setBank(0)
	return s
}

func (s *Scanner) setBank(i int) {
	s.bankIdx = i
	s.curBase = s.ud.SkipAt(i)
	s.curEnd = s.curBase + idsPerBank
	s.curBank = s.ud.bank(i)
}

// Drained reports whether the scanner can yield no further positive
// answers.
func (s *Scanner) Drained() bool { return s.drained }

// Test reports whether id is in the packed set. Successive ids must be
// non-decreasing.
func (s *Scanner) Test(id uint32) bool {
	if s.drained {
		return false
	}
	if id > s.maxDocID {
		s.drained = true
		return false
	}
	if id < s.curBase {
		return false
	}
	if id >= s.curEnd {
		if !s.advance(id) {
			return false
		}
		if id < s.curBase {
			return false
		}
	}

	offset := id - s.curBase
	return s.curBank[offset>>3]&(1<<(offset&7)) != 0
}

// advance moves the cursor to the bank containing id, or to the next bank
// past it. It returns false when no bank remains, marking the scanner
// drained.
func (s *Scanner) advance(id uint32) bool {
	lo := s.bankIdx + 1
	hi := int(s.ud.BankCount)
	if lo >= hi {
		s.drained = true
		return false
	}

	// First bank past id.
	j := lo + sort.Search(hi-lo, func(k int) bool {
		return s.ud.SkipAt(lo+k) > id
	})

	if cand := j - 1; cand >= lo && id < s.ud.SkipAt(cand)+idsPerBank {
		s.setBank(cand)
		return true
	}
	if j < hi {
		s.setBank(j)
		return true
	}
	s.drained = true
	return false
}
