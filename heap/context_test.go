package heap

import (
	"testing"
	"unsafe"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/segalloc/region"
)

func testLogger() log.Logger {
	return log.Logger{Level: log.PanicLevel, Writer: &log.ConsoleWriter{}}
}

func newTestContext(t *testing.T, capacity uint32) *Context {
	t.Helper()
	c, err := New(region.NewSlice(capacity), testLogger())
	require.NoError(t, err)
	return c
}

func blockSizeOf(ptr unsafe.Pointer) uint32 {
	return headerAt(blockOf(ptr)).blockSize()
}

func TestInitLeavesOneOverflowBlock(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)
	assert.Equal(t, 1, c.FreeBlockCount())
}

// Scenario 1: malloc(16) returns an 8-aligned pointer backed by a
// MIN_BLOCK_SIZE block with the allocation bit set.
func TestMallocSmallRequestHonorsMinBlockSize(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	p, err := c.Malloc(16)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, Alignment(p))

	hdr := headerAt(blockOf(p))
	assert.Equal(t, uint32(minBlockSize), hdr.blockSize())
	assert.True(t, hdr.isAlloc())
}

// Scenario 2: two equal-size allocations followed by two frees coalesce,
// and a subsequent malloc for the merged space succeeds at exactly the
// expected block size.
func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	a, err := c.Malloc(64)
	require.NoError(t, err)
	b, err := c.Malloc(64)
	require.NoError(t, err)

	require.NoError(t, c.Free(a))
	require.NoError(t, c.Free(b))

	p, err := c.Malloc(120)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), blockSizeOf(p))
	require.NoError(t, c.Verify())
}

// Scenario 3: size smoothing promotes 112 to 128 for every allocation in
// the (100, 500) window.
func TestMallocSmoothsSizesInBand(t *testing.T) {
	c := newTestContext(t, numBuckets*8+20*chunkSize)

	ptrs := make([]unsafe.Pointer, 0, 1000)
	for i := 0; i < 1000; i++ {
		p, err := c.Malloc(112)
		require.NoError(t, err)
		assert.Equal(t, uint32(128), blockSizeOf(p))
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		require.NoError(t, c.Free(p))
	}
	require.NoError(t, c.Verify())
}

// Scenario 4: allocating past the initial chunk triggers extendHeap and
// still succeeds.
func TestMallocExtendsHeapOnMiss(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize+extendSize)

	const payload = 4096
	var ptrs []unsafe.Pointer
	for c.UsedBytes()+payload+headerSize <= uint64(chunkSize) {
		p, err := c.Malloc(payload)
		require.NoError(t, err)
		ptrs = append(ptrs, p)
	}
	require.NotEmpty(t, ptrs)

	// This allocation no longer fits in the initial chunk and must drive
	// extendHeap; it should still succeed since extendSize of headroom was
	// reserved in the provider's capacity above.
	p, err := c.Malloc(payload)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, c.Verify())
}

// Scenario 5: size smoothing promotes 448 to 512, landing in bucket 4.
func TestMallocSmoothingBucketPlacement(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	p, err := c.Malloc(448)
	require.NoError(t, err)
	assert.Equal(t, uint32(512), blockSizeOf(p))
	require.NoError(t, c.Free(p))
	require.NoError(t, c.Verify())
}

// Scenario 6: realloc preserves the first min(old, new) bytes of payload.
func TestReallocPreservesPayload(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	p, err := c.Malloc(40)
	require.NoError(t, err)

	src := unsafe.Slice((*byte)(p), 40)
	for i := range src {
		src[i] = byte(i)
	}

	q, err := c.Realloc(p, 200)
	require.NoError(t, err)
	require.NotNil(t, q)

	dst := unsafe.Slice((*byte)(q), 40)
	for i := range dst {
		assert.Equal(t, byte(i), dst[i])
	}
	require.NoError(t, c.Verify())
}

func TestFreeThenMallocReusesSpace(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	p, err := c.Malloc(1024)
	require.NoError(t, err)
	usedBefore := c.UsedBytes()
	require.NoError(t, c.Free(p))

	q, err := c.Malloc(1024)
	require.NoError(t, err)
	assert.Equal(t, usedBefore, c.UsedBytes())
	require.NoError(t, c.Free(q))
}

func TestMallocReturnsOutOfMemoryWhenRegionExhausted(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	var lastErr error
	for i := 0; i < 10000; i++ {
		_, err := c.Malloc(4096)
		if err != nil {
			lastErr = err
			break
		}
	}
	assert.ErrorIs(t, lastErr, ErrOutOfMemory)
}

func TestManyAllocationsAndFreesPreserveInvariants(t *testing.T) {
	c := newTestContext(t, numBuckets*8+8*chunkSize)

	var live []unsafe.Pointer
	sizes := []uint32{16, 40, 100, 112, 300, 448, 1000, 2000}

	for round := 0; round < 50; round++ {
		for _, sz := range sizes {
			p, err := c.Malloc(sz)
			require.NoError(t, err)
			live = append(live, p)
		}
		// free every other live allocation to exercise coalescing
		// with both allocated and free neighbors.
		kept := live[:0]
		for i, p := range live {
			if i%2 == 0 {
				require.NoError(t, c.Free(p))
			} else {
				kept = append(kept, p)
			}
		}
		live = kept
		require.NoError(t, c.Verify())
	}

	for _, p := range live {
		require.NoError(t, c.Free(p))
	}
	require.NoError(t, c.Verify())
	assert.Equal(t, 0, countLiveAllocations(c))
}

// countLiveAllocations is a sanity helper: after freeing everything, the
// whole region should collapse back to a single free block.
func countLiveAllocations(c *Context) int {
	return c.FreeBlockCount() - 1
}

func TestFreeRejectsRepeatFree(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	p, err := c.Malloc(64)
	require.NoError(t, err)

	require.NoError(t, c.Free(p))
	assert.ErrorIs(t, c.Free(p), ErrDoubleFree)
}

func TestFreeRejectsPointerOutsideRegion(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	var stray int
	assert.ErrorIs(t, c.Free(unsafe.Pointer(&stray)), ErrInvalidPointer)
}

func TestReallocRejectsPointerOutsideRegion(t *testing.T) {
	c := newTestContext(t, numBuckets*8+chunkSize)

	var stray int
	_, err := c.Realloc(unsafe.Pointer(&stray), 32)
	assert.ErrorIs(t, err, ErrInvalidPointer)
}
