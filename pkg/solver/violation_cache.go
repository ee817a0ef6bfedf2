package solver

// maxCacheEntries bounds the violation cache.
const maxCacheEntries = 20

type cacheEntry struct {
	constraint int
	violation  float64
	leftGen    uint64
	rightGen   uint64
}

// violationCache remembers the most violated inactive constraints seen by
// the last full scan. An entry is stale once the generation of either
// endpoint's block has moved on.
type violationCache struct {
	entries []cacheEntry
	low     float64 // smallest cached violation, valid when full
}

func (vc *violationCache) clear() {
	vc.entries = vc.entries[:0]
	vc.low = 0
}

func (vc *violationCache) isFull() bool { return len(vc.entries) >= maxCacheEntries }

func (vc *violationCache) recomputeLow() {
	vc.low = 0
	for i, e := range vc.entries {
		if i == 0 || e.violation < vc.low {
			vc.low = e.violation
		}
	}
}

// insert adds the constraint if there is room or it beats the lowest entry.
func (vc *violationCache) insert(s *Solver, ci int, violation float64) {
	e := cacheEntry{
		constraint: ci,
		violation:  violation,
		leftGen:    s.vars[s.cons[ci].left].block.generation,
		rightGen:   s.vars[s.cons[ci].right].block.generation,
	}
	if !vc.isFull() {
		vc.entries = append(vc.entries, e)
		vc.recomputeLow()
		return
	}
	if violation <= vc.low {
		return
	}
	for i := range vc.entries {
		if vc.entries[i].violation == vc.low {
			vc.entries[i] = e
			break
		}
	}
	vc.recomputeLow()
}

// filter drops entries that are stale, active or unsatisfiable.
func (vc *violationCache) filter(s *Solver) {
	kept := vc.entries[:0]
	for _, e := range vc.entries {
		c := &s.cons[e.constraint]
		if c.unsatisfiable || s.isActive(e.constraint) {
			continue
		}
		if s.vars[c.left].block.generation != e.leftGen || s.vars[c.right].block.generation != e.rightGen {
			continue
		}
		kept = append(kept, e)
	}
	vc.entries = kept
	vc.recomputeLow()
}

// takeIfGreater removes and returns the cached entry with the largest
// violation if it exceeds threshold.
func (vc *violationCache) takeIfGreater(threshold float64) (int, float64, bool) {
	best := -1
	for i, e := range vc.entries {
		if e.violation > threshold && (best < 0 || e.violation > vc.entries[best].violation) {
			best = i
		}
	}
	if best < 0 {
		return -1, 0, false
	}
	e := vc.entries[best]
	vc.entries = append(vc.entries[:best], vc.entries[best+1:]...)
	vc.recomputeLow()
	return e.constraint, e.violation, true
}

func (vc *violationCache) len() int { return len(vc.entries) }
