package region

import "unsafe"

// Slice is a Provider backed by one pre-reserved Go byte slice. The slice is
// allocated at its full capacity up front and Grow only ever advances a
// high-water mark within it, so the backing array never moves and pointers
// handed out by Grow stay valid for the Slice's whole lifetime.
//
// Grounded on the slice-as-arena idiom: reserve a fixed buffer once, then
// only ever reslice forward, never append/grow it.
type Slice struct {
	mem  []byte
	used uint32
}

// NewSlice reserves a Slice region with room for up to capacity bytes.
func NewSlice(capacity uint32) *Slice {
	return &Slice{mem: make([]byte, capacity)}
}

// Grow extends the region by n bytes, returning a pointer to the first of
// them, or ErrGrowthFailed if doing so would exceed the reserved capacity.
func (s *Slice) Grow(n uint32) (unsafe.Pointer, error) {
	if uint64(s.used)+uint64(n) > uint64(len(s.mem)) {
		return nil, ErrGrowthFailed
	}
	p := unsafe.Pointer(&s.mem[s.used])
	s.used += n
	return p, nil
}

// Low returns a pointer to the first byte of the region.
func (s *Slice) Low() unsafe.Pointer {
	if len(s.mem) == 0 {
		return nil
	}
	return unsafe.Pointer(&s.mem[0])
}

// High returns a pointer to the current high-water mark of the region.
func (s *Slice) High() unsafe.Pointer {
	if s.used == 0 {
		return s.Low()
	}
	return unsafe.Pointer(&s.mem[s.used-1])
}

// Capacity returns the total reserved size of the region in bytes.
func (s *Slice) Capacity() uint32 {
	return uint32(len(s.mem))
}

// Used returns the number of bytes handed out by Grow so far.
func (s *Slice) Used() uint32 {
	return s.used
}
