package heap

// directory is the segregated free-list directory: numBuckets LIFO,
// doubly-linked lists of free blocks, plus the free_num membership counter
// used as a fast-path check in findFit.
type directory struct {
	buckets   [numBuckets]*freeBlock
	freeCount int
}

// add inserts block at the head of its bucket.
func (d *directory) add(b *freeBlock) {
	idx := classify(b.blockSize())
	b.prev = nil
	b.next = d.buckets[idx]
	if b.next != nil {
		b.next.prev = b
	}
	d.buckets[idx] = b
	d.freeCount++
}

// remove unlinks block from its bucket in O(1).
func (d *directory) remove(b *freeBlock) {
	idx := classify(b.blockSize())
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		d.buckets[idx] = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	d.freeCount--
}

// contains reports whether target is reachable on bucket's list and that
// the list's prev/next linkage up to target is internally consistent.
func (d *directory) contains(bucket int, target *freeBlock) bool {
	var prev *freeBlock
	for b := d.buckets[bucket]; b != nil; b = b.next {
		if b.prev != prev {
			return false
		}
		if b == target {
			return true
		}
		prev = b
	}
	return false
}
