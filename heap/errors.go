package heap

import "errors"

// Error definitions.
var (
	// ErrOutOfMemory is returned when the region provider refuses growth
	// during Init or Malloc.
	ErrOutOfMemory = errors.New("heap: out of memory")

	// ErrInvalidPointer is returned by Free/Realloc when a pointer falls
	// outside the region entirely. A pointer that falls inside the region
	// but was not actually returned by Malloc is a contract violation this
	// package has no way to detect and does not attempt to.
	ErrInvalidPointer = errors.New("heap: pointer not owned by this heap")

	// ErrDoubleFree is returned by Free when the block at ptr is already
	// marked free. This catches a pointer freed twice in a row; it is
	// best-effort and cannot catch a double free separated by an
	// intervening allocation that reuses the same block.
	ErrDoubleFree = errors.New("heap: double free")

	// ErrCorrupt is returned by Verify when the heap violates one of its
	// structural invariants.
	ErrCorrupt = errors.New("heap: invariant violation")
)
