package updates

import "errors"

// MaxRegistrySize is the largest number of scanners one Registry holds.
const MaxRegistrySize = 255

// ErrTooManyScanners is returned when a Registry is created over more than
// MaxRegistrySize bitmaps.
var ErrTooManyScanners = errors.New("updates: too many scanners")

// Registry fans a membership test across several scanners, one per masking
// segment. Drained scanners are pruned as they are discovered; the order of
// the remaining scanners is not preserved.
type Registry struct {
	scanners []Scanner
}

// NewRegistry creates a Registry over the given bitmaps.
func NewRegistry(uds ...*UpdatedDocuments) (*Registry, error) {
	if len(uds) > MaxRegistrySize {
		return nil, ErrTooManyScanners
	}
	r := &Registry{
		scanners: make([]Scanner, len(uds)),
	}
	for i, ud := range uds {
		r.scanners[i] = *NewScanner(ud)
	}
	return r, nil
}

// Test reports whether id is in any scanner's set. Successive ids must be
// non-decreasing across calls.
func (r *Registry) Test(id uint32) bool {
	for i := 0; i < len(r.scanners); {
		sc := &r.scanners[i]
		if sc.Test(id) {
			return true
		}
		if sc.Drained() {
			last := len(r.scanners) - 1
			r.scanners[i] = r.scanners[last]
			r.scanners = r.scanners[:last]
		} else {
			i++
		}
	}
	return false
}

// Len returns the number of live scanners.
func (r *Registry) Len() int { return len(r.scanners) }

// Empty reports whether all scanners have drained.
func (r *Registry) Empty() bool { return len(r.scanners) == 0 }
