// Package region provides the byte-region ("sbrk-equivalent") contract that
// the allocation engine in package heap consumes. The provider owns a single
// contiguous, monotonically-growable span of bytes: it never returns bytes
// to the operating system and a successful Grow never moves bytes it has
// already handed out.
package region

import (
	"errors"
	"unsafe"
)

// ErrGrowthFailed is the sentinel a Provider returns when it cannot satisfy
// a growth request, e.g. its backing reservation is exhausted.
var ErrGrowthFailed = errors.New("region: growth failed")

// Provider is the external collaborator described in the allocator's
// interface contract. Grow extends the region by n bytes and returns a
// pointer to the first newly-added byte. Low and High report the current
// bounds of the region; package heap uses them to reject pointers outside
// the region and to translate between payload pointers and region offsets.
type Provider interface {
	Grow(n uint32) (unsafe.Pointer, error)
	Low() unsafe.Pointer
	High() unsafe.Pointer
}
