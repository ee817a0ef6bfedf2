package solver

import "time"

// solveByProject alternates Project and Split until no block splits.
func (s *Solver) solveByProject() error {
	for {
		if _, err := s.runProject(); err != nil {
			return err
		}
		if s.solution.ExecutionLimitExceeded() {
			return nil
		}
		split, err := s.splitBlocks()
		if err != nil {
			return err
		}
		if !split {
			return nil
		}
	}
}

// runProject runs one outer iteration, honoring the outer and time limits.
// It reports whether any violated constraint was resolved.
func (s *Solver) runProject() (bool, error) {
	if s.outerLimit > 0 && s.solution.OuterProjectIterations >= s.outerLimit {
		s.solution.OuterProjectIterationsLimitExceeded = true
		return false, nil
	}
	if s.timeExceeded() {
		s.solution.TimeLimitExceeded = true
		return false, nil
	}
	s.solution.OuterProjectIterations++
	return s.project()
}

// project repeatedly resolves the most violated constraint by merging its
// blocks or expanding the block it lives in.
func (s *Solver) project() (bool, error) {
	s.lastModified = nil
	inner := 0
	for {
		ci := s.mostViolated()
		if ci < 0 {
			break
		}
		c := &s.cons[ci]
		var err error
		if s.vars[c.left].block == s.vars[c.right].block {
			err = s.expand(ci)
		} else {
			err = s.merge(ci)
		}
		if err != nil {
			return false, err
		}
		inner++
		if s.innerLimit > 0 && inner >= s.innerLimit {
			s.solution.InnerProjectIterationsLimitExceeded = true
			break
		}
		if s.timeExceeded() {
			s.solution.TimeLimitExceeded = true
			break
		}
	}

	s.solution.InnerProjectIterationsTotal += inner
	s.solution.MinInnerProjectIterations = min(s.solution.MinInnerProjectIterations, inner)
	s.solution.MaxInnerProjectIterations = max(s.solution.MaxInnerProjectIterations, inner)
	return inner > 0, nil
}

func (s *Solver) timeExceeded() bool {
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

// mostViolated returns the inactive, satisfiable constraint with the largest
// violation above the gap tolerance, or -1 if there is none.
func (s *Solver) mostViolated() int {
	if s.useCache() {
		return s.cachedSearch()
	}
	return s.fullScan()
}

func (s *Solver) useCache() bool {
	return s.params.Advanced.UseViolationCache &&
		s.lastModified != nil &&
		s.blocks.len() >= s.cacheMinBlocks
}

// fullScan examines every inactive constraint. With caching enabled it
// refills the cache with the runners-up.
func (s *Solver) fullScan() int {
	fill := s.params.Advanced.UseViolationCache
	if fill {
		s.cache.clear()
	}
	tol := s.params.GapTolerance
	best, maxViolation := -1, tol
	for _, ci := range s.cvec.inactive() {
		c := &s.cons[ci]
		if c.unsatisfiable {
			continue
		}
		v := s.violation(c)
		if v <= tol {
			continue
		}
		if v > maxViolation {
			if fill && best >= 0 {
				s.cache.insert(s, best, maxViolation)
			}
			best, maxViolation = ci, v
		} else if fill {
			s.cache.insert(s, ci, v)
		}
	}
	return best
}

// cachedSearch scans only the constraints of the last modified block and
// compares the best of them against the surviving cache entries.
func (s *Solver) cachedSearch() int {
	s.cache.filter(s)
	if s.cache.len() == 0 {
		return s.fullScan()
	}

	b := s.lastModified
	best, maxViolation := -1, s.params.GapTolerance
	consider := func(ci int) {
		c := &s.cons[ci]
		if c.unsatisfiable || s.isActive(ci) {
			return
		}
		if v := s.violation(c); v > maxViolation {
			best, maxViolation = ci, v
		}
	}
	for _, vi := range b.vars {
		v := &s.vars[vi]
		for _, ci := range v.leftOf {
			consider(ci)
		}
		for _, ci := range v.rightOf {
			if s.vars[s.cons[ci].left].block != b {
				consider(ci)
			}
		}
	}

	if cached, _, ok := s.cache.takeIfGreater(maxViolation); ok {
		if best >= 0 {
			s.cache.insert(s, best, maxViolation)
		}
		return cached
	}
	return best
}
