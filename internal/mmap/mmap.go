// Package mmap provides read-only memory mapping of the spill file the
// session re-reads at commit time.
package mmap

// Mapping is a read-only memory-mapped region.
type Mapping struct {
	data []byte
}

// Bytes returns the mapped bytes. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Close unmaps the region. Closing a nil Mapping is a no-op.
func (m *Mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	err := munmap(m.data)
	m.data = nil
	return err
}

// Map maps size bytes of the file behind fd read-only. size must be
// positive.
func Map(fd uintptr, size int) (*Mapping, error) {
	data, err := mapFD(fd, size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}

// AdviseSequential hints the kernel that the mapping will be read once,
// front to back, and should be excluded from core dumps where supported.
// Best effort; errors are ignored.
func (m *Mapping) AdviseSequential() {
	if m == nil || m.data == nil {
		return
	}
	advise(m.data)
}
