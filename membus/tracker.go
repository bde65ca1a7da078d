package membus

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// PageTracker observes page accesses on a Memory bus and reports
// working-set residency statistics (page accesses observed, and how
// often an access falls outside a fixed-size resident window). It
// repurposes the Akita cache directory's tag/LRU machinery for page
// accounting rather than cache-line timing: there is no hit/miss
// latency here, only residency bookkeeping, since this emulator does
// not model cache timing (spec.md §9).
type PageTracker struct {
	directory *akitacache.DirectoryImpl

	touches   uint64
	evictions uint64
}

// NewPageTracker creates a tracker that models a resident working set
// of capacityPages pages, organized into the given associativity for
// the underlying LRU accounting.
func NewPageTracker(capacityPages, associativity int) *PageTracker {
	if associativity < 1 {
		associativity = 1
	}
	numSets := capacityPages / associativity
	if numSets < 1 {
		numSets = 1
	}
	return &PageTracker{
		directory: akitacache.NewDirectory(numSets, associativity, PageSize, akitacache.NewLRUVictimFinder()),
	}
}

// touch records an access to the page starting at base.
func (t *PageTracker) touch(base uint64) {
	t.touches++

	if block := t.directory.Lookup(0, base); block != nil && block.IsValid {
		t.directory.Visit(block)
		return
	}

	victim := t.directory.FindVictim(base)
	if victim == nil {
		return
	}
	if victim.IsValid {
		t.evictions++
	}
	victim.Tag = base
	victim.IsValid = true
	t.directory.Visit(victim)
}

// PageTrackerStats summarizes working-set behavior observed so far.
type PageTrackerStats struct {
	// Touches is the total number of page accesses observed.
	Touches uint64
	// Evictions is the number of accesses that displaced a different
	// resident page, a proxy for working-set pressure.
	Evictions uint64
}

// Stats returns a snapshot of the tracker's counters.
func (t *PageTracker) Stats() PageTrackerStats {
	return PageTrackerStats{Touches: t.touches, Evictions: t.evictions}
}
