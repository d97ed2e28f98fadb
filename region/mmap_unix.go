//go:build linux || darwin

package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap is a Provider backed by a single anonymous mmap(2) reservation. Like
// Slice, the whole reservation is made up front; Grow only advances a
// high-water mark inside it, so the kernel's page-fault-on-first-touch
// behavior gives us commit-on-demand without ever moving a byte the
// allocator has already used.
//
// Grounded on the unix.* call style of hive/dirty's platform-tagged flush
// helpers: a build-tagged file wrapping golang.org/x/sys/unix directly.
type Mmap struct {
	mem  []byte
	used uint32
}

// NewMmap reserves an Mmap region with room for up to capacity bytes.
func NewMmap(capacity uint32) (*Mmap, error) {
	mem, err := unix.Mmap(
		-1, 0, int(capacity),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("region: mmap reservation of %d bytes failed: %w", capacity, err)
	}
	return &Mmap{mem: mem}, nil
}

// Grow extends the region by n bytes, returning a pointer to the first of
// them, or ErrGrowthFailed if doing so would exceed the reserved capacity.
func (m *Mmap) Grow(n uint32) (unsafe.Pointer, error) {
	if uint64(m.used)+uint64(n) > uint64(len(m.mem)) {
		return nil, ErrGrowthFailed
	}
	p := unsafe.Pointer(&m.mem[m.used])
	m.used += n
	return p, nil
}

// Low returns a pointer to the first byte of the region.
func (m *Mmap) Low() unsafe.Pointer {
	if len(m.mem) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.mem[0])
}

// High returns a pointer to the current high-water mark of the region.
func (m *Mmap) High() unsafe.Pointer {
	if m.used == 0 {
		return m.Low()
	}
	return unsafe.Pointer(&m.mem[m.used-1])
}

// Close releases the underlying mapping. Note this is the one place the
// allocator's monotonic-growth rule is allowed to break: it tears down the
// whole reservation, it never shrinks it piecemeal.
func (m *Mmap) Close() error {
	return unix.Munmap(m.mem)
}
