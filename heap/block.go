package heap

import "unsafe"

// header is the 8-byte in-band metadata preceding every block's payload.
// size's low bit doubles as the allocation flag; size is always a multiple
// of 8 so the low 3 bits are otherwise unused. prevSize is the total size
// of the immediately preceding block in address order, replacing a
// classical boundary footer.
type header struct {
	size     uint32
	prevSize uint32
}

// blockSize returns the block's total size (header + payload), with the
// allocation flag masked off.
func (h *header) blockSize() uint32 { return h.size & sizeMask }

// isAlloc reports whether the block's allocation bit is set.
func (h *header) isAlloc() bool { return h.size&allocBit != 0 }

// setAlloc sets the allocation bit in place.
func (h *header) setAlloc() { h.size |= allocBit }

// clearAlloc clears the allocation bit (and any stray bits below it) in
// place, mirroring the reference's `block_size &= ~0x7`.
func (h *header) clearAlloc() { h.size &^= 0x7 }

// setSize overwrites the whole size word, allocation bit included: the
// block is marked allocated only if the caller ORs allocBit into size.
func (h *header) setSize(size uint32) { h.size = size }

// freeBlock overlays a free block's payload area: the first 16 bytes after
// the header hold the bucket's doubly-linked list pointers. When a block is
// allocated those same bytes belong to the caller and must not be touched.
type freeBlock struct {
	header
	next *freeBlock
	prev *freeBlock
}

// headerAt reinterprets p as a block header.
func headerAt(p unsafe.Pointer) *header { return (*header)(p) }

// freeBlockAt reinterprets p as a free block.
func freeBlockAt(p unsafe.Pointer) *freeBlock { return (*freeBlock)(p) }

// offset returns a pointer n bytes past p. n may be negative (as a large
// uintptr wraps, which is the standard two's-complement trick for backward
// pointer arithmetic in Go).
func offset(p unsafe.Pointer, n int64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) + uintptr(n))
}

// payloadOf returns the payload pointer for the block at blockPtr.
func payloadOf(blockPtr unsafe.Pointer) unsafe.Pointer {
	return offset(blockPtr, headerSize)
}

// blockOf returns the block header pointer for a previously returned
// payload pointer.
func blockOf(payload unsafe.Pointer) unsafe.Pointer {
	return offset(payload, -headerSize)
}
