// Package heap implements the allocation engine: a single-threaded,
// segregated-free-list allocator over one region.Provider-backed byte
// region. A Context binds to exactly one region.Provider for its lifetime;
// a system that needs multiple independent heaps creates multiple Contexts
// (see package pool).
package heap

// Tunable constants, carried over byte-for-byte from the reference
// implementation.
const (
	// chunkSize is the initial heap size requested from the region
	// provider during Init.
	chunkSize = 58176

	// extendSize is how far the heap grows on a find_fit miss, unless the
	// requested block is larger, in which case it grows by that block's size.
	extendSize = 4400 * 8

	// minBlockSize is the smallest block that can live on a free list:
	// header (8 bytes) plus two link pointers (16 bytes).
	minBlockSize = 24

	// numBuckets is the size of the segregated free-list directory.
	numBuckets = 47

	// largeStep is the arithmetic stride between buckets above
	// largeThreshold.
	largeStep = 800

	// largeThreshold is where the classifier switches from geometric to
	// arithmetic bucketing.
	largeThreshold = 1024

	// largeSearchThreshold is the bucket index at or above which find_fit
	// always searches back-to-front from the overflow bucket, a
	// workload-tuned heuristic rather than a semantic threshold.
	largeSearchThreshold = 44

	// smoothLow and smoothHigh bound the size-smoothing window applied in
	// Malloc; smoothBandFraction is the top fraction of a power-of-two
	// band that triggers promotion.
	smoothLow          = 100
	smoothHigh         = 500
	smoothBandFraction = 8

	// headerSize is the in-band header preceding every block's payload.
	headerSize = 8

	// allocBit is the low bit of block_size, doubling as the allocation
	// flag.
	allocBit uint32 = 0x1

	// sizeMask clears the low 3 bits of block_size, which are always free
	// since every block size is a multiple of 8.
	sizeMask uint32 = ^uint32(0x7)
)
