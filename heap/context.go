package heap

import (
	"fmt"
	"unsafe"

	"github.com/phuslu/log"

	"github.com/shenjiangwei/segalloc/region"
)

// Context is the allocator's entire mutable state — the segregated
// directory, the prologue pointer, and free_num — encapsulated in a single
// value per the design note that a system needing multiple independent
// heaps should instantiate multiple contexts (see package pool).
//
// A Context is not safe for concurrent use; serialize access the way
// package pool does, with one mutex per Context.
type Context struct {
	provider region.Provider
	logger   log.Logger

	dir          directory
	prologue     unsafe.Pointer
	usedBytes    uint64
	headerBytes  uint64 // prologue + epilogue + every block's header, free or allocated
}

// New creates a Context over provider and runs Init.
func New(provider region.Provider, logger log.Logger) (*Context, error) {
	c := &Context{provider: provider, logger: logger}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// init lays out the segregated directory, prologue, initial free block, and
// epilogue. The directory's NUM_BUCKETS*8 bytes are requested from the
// provider purely for heap-overhead accounting fidelity with a directory
// that conceptually lives in the region; the actual bucket heads are kept
// in the type-safe dir field above, since storing live Go pointers inside a
// provider-owned []byte would be unsound for the garbage collector (see
// DESIGN.md).
func (c *Context) init() error {
	if _, err := c.provider.Grow(numBuckets * 8); err != nil {
		c.logger.Error().Err(err).Msg("heap: failed to reserve directory space")
		return fmt.Errorf("%w: directory reservation: %v", ErrOutOfMemory, err)
	}

	base, err := c.provider.Grow(chunkSize)
	if err != nil {
		c.logger.Error().Err(err).Msg("heap: failed to reserve initial chunk")
		return fmt.Errorf("%w: initial chunk: %v", ErrOutOfMemory, err)
	}

	c.prologue = base
	prologueHdr := headerAt(base)
	prologueHdr.setSize(headerSize | allocBit)
	prologueHdr.prevSize = 0

	initBlockPtr := offset(base, headerSize)
	initBlock := freeBlockAt(initBlockPtr)
	initSize := (uint32(chunkSize) - 2*headerSize) &^ 7
	initBlock.setSize(initSize)
	initBlock.prevSize = headerSize

	epiPtr := offset(initBlockPtr, int64(initSize))
	epiHdr := headerAt(epiPtr)
	epiHdr.prevSize = initSize
	epiHdr.setSize(0 | allocBit)

	initBlock.next = nil
	initBlock.prev = nil
	c.dir.buckets[numBuckets-1] = initBlock
	c.dir.freeCount = 1

	c.headerBytes = 3 * headerSize // prologue + initial block + epilogue
	c.logger.Debug().Msgf("heap: initialized with %d free bytes", initSize-headerSize)
	return nil
}

// smoothSize implements Malloc's size-smoothing heuristic: a request that
// falls in the top smoothBandFraction of its power-of-two band, within the
// (smoothLow, smoothHigh) window, is promoted to the clean power-of-two
// size. Pure utility tuning; does not affect correctness.
func smoothSize(size uint32) uint32 {
	p := nextPowerOfTwo(size)
	if size > smoothLow && size < smoothHigh && size >= p-p/smoothBandFraction {
		return p
	}
	return size
}

// align8 rounds x up to the next multiple of 8.
func align8(x uint32) uint32 { return (x + 7) &^ 7 }

// Malloc allocates a block with at least size bytes of payload, returning
// the payload pointer. Returns ErrOutOfMemory if the region provider cannot
// grow the heap further.
func (c *Context) Malloc(size uint32) (unsafe.Pointer, error) {
	size = smoothSize(size)

	asize := align8(size + headerSize)
	if asize < minBlockSize {
		asize = minBlockSize
	}

	if blk := c.findFit(asize); blk != nil {
		return c.place(blk, asize), nil
	}

	n := uint32(extendSize)
	if asize > n {
		n = asize
	}
	blk, err := c.extendHeap(n)
	if err != nil {
		c.logger.Error().Err(err).Msgf("heap: malloc(%d) failed to extend heap", size)
		return nil, ErrOutOfMemory
	}
	return c.place(blk, asize), nil
}

// findFit performs segregated first-fit search with the bucket-order
// optimizations described in the allocation engine design: buckets at or
// above largeSearchThreshold (and the single-free-block bootstrap case)
// search back-to-front from the overflow bucket; otherwise it scans the
// matching bucket first, then every bucket above it in order.
func (c *Context) findFit(asize uint32) *freeBlock {
	if c.dir.freeCount == 0 {
		return nil
	}

	bucket := classify(asize)

	if c.dir.freeCount == 1 || bucket >= largeSearchThreshold {
		for z := numBuckets - 1; z >= bucket; z-- {
			if blk := c.dir.buckets[z]; blk != nil && blk.blockSize() >= asize {
				return blk
			}
		}
		return nil
	}

	for blk := c.dir.buckets[bucket]; blk != nil; blk = blk.next {
		if blk.blockSize() >= asize {
			return blk
		}
	}

	for z := bucket + 1; z < numBuckets; z++ {
		if blk := c.dir.buckets[z]; blk != nil {
			return blk
		}
	}

	return nil
}

// place carves asize bytes off block, splitting off a free tail when the
// remainder is at least minBlockSize, and returns the resulting payload
// pointer.
func (c *Context) place(block *freeBlock, asize uint32) unsafe.Pointer {
	blockPtr := unsafe.Pointer(block)
	split := block.blockSize() - asize
	c.dir.remove(block)

	if split >= minBlockSize {
		block.setSize(asize | allocBit)

		newPtr := offset(blockPtr, int64(asize))
		newBlock := freeBlockAt(newPtr)
		newBlock.setSize(split)
		newBlock.prevSize = asize

		nextHdr := headerAt(offset(newPtr, int64(split)))
		nextHdr.prevSize = split

		c.dir.add(newBlock)
		c.headerBytes += headerSize
	} else {
		block.setAlloc()
	}

	c.usedBytes += uint64(block.blockSize())
	return payloadOf(blockPtr)
}

// Free releases a block previously returned by Malloc or Realloc. Returns
// ErrInvalidPointer if ptr falls outside the region, or ErrDoubleFree if the
// block is already marked free.
func (c *Context) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	if !c.owns(ptr) {
		return ErrInvalidPointer
	}
	blockPtr := blockOf(ptr)
	block := freeBlockAt(blockPtr)
	if !block.isAlloc() {
		return ErrDoubleFree
	}
	c.usedBytes -= uint64(block.blockSize())
	block.clearAlloc()
	c.coalesce(block)
	return nil
}

// owns reports whether ptr falls within the region this Context manages. A
// pointer inside the region that was never actually returned by Malloc is a
// contract violation owns cannot detect.
func (c *Context) owns(ptr unsafe.Pointer) bool {
	return uintptr(ptr) >= uintptr(c.provider.Low()) && uintptr(ptr) <= uintptr(c.provider.High())
}

// coalesce performs boundary-tag-free coalescing: it reads the allocation
// bit of the physically adjacent blocks (found via the freed block's size
// and prevSize, not a footer) and merges with whichever neighbors are free,
// finally reinserting the (possibly merged) block into the directory.
func (c *Context) coalesce(block *freeBlock) *freeBlock {
	blockPtr := unsafe.Pointer(block)
	nextHdr := headerAt(offset(blockPtr, int64(block.blockSize())))
	prevHdr := headerAt(offset(blockPtr, -int64(block.prevSize)))

	nextAlloc := nextHdr.isAlloc()
	prevAlloc := prevHdr.isAlloc()

	switch {
	case prevAlloc && nextAlloc:
		// Case (A,A): no coalescing.

	case prevAlloc && !nextAlloc:
		// Case (A,F): absorb next.
		nextBlk := freeBlockAt(unsafe.Pointer(nextHdr))
		c.dir.remove(nextBlk)
		block.setSize(block.blockSize() + nextBlk.blockSize())
		c.headerBytes -= headerSize
		nn := headerAt(offset(blockPtr, int64(block.blockSize())))
		nn.prevSize = block.blockSize()

	case !prevAlloc && nextAlloc:
		// Case (F,A): absorb into prev.
		prevBlk := freeBlockAt(unsafe.Pointer(prevHdr))
		c.dir.remove(prevBlk)
		prevBlk.setSize(prevBlk.blockSize() + block.blockSize())
		c.headerBytes -= headerSize
		nextBlk := offset(blockPtr, int64(block.blockSize()))
		headerAt(nextBlk).prevSize = prevBlk.blockSize()
		block = prevBlk
		blockPtr = unsafe.Pointer(block)

	default:
		// Case (F,F): absorb both.
		nextBlk := freeBlockAt(unsafe.Pointer(nextHdr))
		prevBlk := freeBlockAt(unsafe.Pointer(prevHdr))
		c.dir.remove(nextBlk)
		c.dir.remove(prevBlk)
		prevBlk.setSize(prevBlk.blockSize() + block.blockSize() + nextBlk.blockSize())
		c.headerBytes -= 2 * headerSize
		nn := headerAt(offset(unsafe.Pointer(prevBlk), int64(prevBlk.blockSize())))
		nn.prevSize = prevBlk.blockSize()
		block = prevBlk
		blockPtr = unsafe.Pointer(block)
	}

	c.dir.add(block)
	return block
}

// extendHeap grows the region by n bytes and folds them into a new free
// block, reusing the old epilogue's header position and its already-correct
// prevSize field. Returns the coalesced result of merging that new block
// with whatever free block preceded the old epilogue, if any.
func (c *Context) extendHeap(n uint32) (*freeBlock, error) {
	mem, err := c.provider.Grow(n)
	if err != nil {
		return nil, err
	}

	blockPtr := offset(mem, -headerSize)
	block := freeBlockAt(blockPtr)
	block.setSize(n &^ 7)
	c.headerBytes += headerSize

	newEpi := headerAt(offset(blockPtr, int64(block.blockSize())))
	newEpi.setSize(0 | allocBit)
	newEpi.prevSize = block.blockSize()

	return c.coalesce(block), nil
}

// Realloc resizes the allocation at ptr to size bytes. It is the naive
// malloc-copy-free implementation: it copies min(old block size, size)
// bytes rather than min(old payload size, size), which can read up to
// headerSize bytes past the payload into whatever follows. Preserved for
// parity with the reference allocator rather than fixed.
//
// If the underlying Malloc fails, Realloc logs fatally and terminates the
// process, matching the reference's exit(1) on OOM.
func (c *Context) Realloc(ptr unsafe.Pointer, size uint32) (unsafe.Pointer, error) {
	if ptr != nil && !c.owns(ptr) {
		return nil, ErrInvalidPointer
	}

	newPtr, err := c.Malloc(size)
	if err != nil {
		c.logger.Fatal().Err(err).Msg("heap: realloc failed, out of memory")
		return nil, err
	}

	block := freeBlockAt(blockOf(ptr))
	copySize := block.blockSize()
	if uint64(copySize) > uint64(size) {
		copySize = size
	}

	src := unsafe.Slice((*byte)(ptr), copySize)
	dst := unsafe.Slice((*byte)(newPtr), copySize)
	copy(dst, src)

	if err := c.Free(ptr); err != nil {
		return nil, err
	}
	return newPtr, nil
}

// UsedBytes returns the total size, including headers, of every block
// currently allocated.
func (c *Context) UsedBytes() uint64 { return c.usedBytes }

// FreeBlockCount returns free_num, the number of blocks currently resident
// on some bucket list.
func (c *Context) FreeBlockCount() int { return c.dir.freeCount }

// Overhead returns the total header bytes currently consumed by the heap
// (prologue, epilogue, and one per block, free or allocated).
func (c *Context) Overhead() uint64 { return c.headerBytes }

// Low returns the base address of the underlying region, letting callers
// (package pool's offset-based RPC wire format) translate between
// process-local pointers and region-relative offsets.
func (c *Context) Low() unsafe.Pointer { return c.provider.Low() }

// PointerAt returns the payload pointer offset bytes from the region's
// base address. It performs no bounds or liveness checking; callers are
// expected to only pass offsets previously produced from a pointer this
// Context itself returned.
func (c *Context) PointerAt(offset uint32) unsafe.Pointer {
	return unsafe.Add(c.Low(), offset)
}

// OffsetOf returns ptr's distance from the region's base address.
func (c *Context) OffsetOf(ptr unsafe.Pointer) uint32 {
	return uint32(uintptr(ptr) - uintptr(c.Low()))
}
