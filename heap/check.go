package heap

import (
	"fmt"
	"unsafe"
)

// Verify walks the heap from the prologue to the epilogue checking
// invariants I1-I8 and returns the first violation found, wrapped in
// ErrCorrupt. It is not part of the allocation hot path; call it from
// tests or a diagnostic command.
//
// Resurrected from the commented-out mm_checkheap/checkblock/printblock
// routines in the reference allocator, where they were out of scope for
// the allocator's own logic but still carried as dead code.
func (c *Context) Verify() error {
	prologueHdr := headerAt(c.prologue)
	if prologueHdr.blockSize() != headerSize || !prologueHdr.isAlloc() {
		return fmt.Errorf("%w: malformed prologue header", ErrCorrupt)
	}

	cur := offset(c.prologue, headerSize)
	prevSize := prologueHdr.blockSize()
	prevWasFree := false
	countedFree := 0

	for {
		h := headerAt(cur)
		sz := h.blockSize()

		if sz == 0 {
			if !h.isAlloc() {
				return fmt.Errorf("%w: malformed epilogue header", ErrCorrupt)
			}
			break
		}

		if sz%8 != 0 || sz < minBlockSize {
			return fmt.Errorf("%w: block at %p has invalid size %d", ErrCorrupt, cur, sz)
		}
		if h.prevSize != prevSize {
			return fmt.Errorf(
				"%w: block at %p has prevSize %d, expected %d",
				ErrCorrupt, cur, h.prevSize, prevSize,
			)
		}

		free := !h.isAlloc()
		if free {
			if prevWasFree {
				return fmt.Errorf("%w: adjacent free blocks at %p", ErrCorrupt, cur)
			}
			fb := freeBlockAt(cur)
			bucket := classify(sz)
			if !c.dir.contains(bucket, fb) {
				return fmt.Errorf(
					"%w: free block at %p not found in bucket %d", ErrCorrupt, cur, bucket,
				)
			}
			countedFree++
		}

		prevWasFree = free
		prevSize = sz
		cur = offset(cur, int64(sz))
	}

	if countedFree != c.dir.freeCount {
		return fmt.Errorf(
			"%w: counted %d free blocks, free_num tracks %d",
			ErrCorrupt, countedFree, c.dir.freeCount,
		)
	}
	return nil
}

// Alignment reports whether ptr, a payload pointer previously returned by
// Malloc or Realloc, is 8-byte aligned. Exposed for tests exercising the
// alignment guarantee in the public API table.
func Alignment(ptr unsafe.Pointer) bool {
	return uintptr(ptr)%8 == 0
}
