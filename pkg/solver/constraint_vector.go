package solver

// constraintVector partitions constraint indices into [active | inactive]
// with a single cursor. Activation and deactivation are O(1) swaps.
type constraintVector struct {
	order     []int
	numActive int
	cons      []constraint
}

func newConstraintVector(cons []constraint) constraintVector {
	cv := constraintVector{order: make([]int, len(cons)), cons: cons}
	for i := range cons {
		cv.order[i] = i
		cons[i].vectorIndex = i
	}
	return cv
}

func (cv *constraintVector) swap(i, j int) {
	cv.order[i], cv.order[j] = cv.order[j], cv.order[i]
	cv.cons[cv.order[i]].vectorIndex = i
	cv.cons[cv.order[j]].vectorIndex = j
}

func (cv *constraintVector) activate(ci int) {
	idx := cv.cons[ci].vectorIndex
	if idx < cv.numActive {
		return
	}
	cv.swap(idx, cv.numActive)
	cv.numActive++
}

func (cv *constraintVector) deactivate(ci int) {
	idx := cv.cons[ci].vectorIndex
	if idx >= cv.numActive {
		return
	}
	cv.numActive--
	cv.swap(idx, cv.numActive)
}

func (cv *constraintVector) inactive() []int {
	return cv.order[cv.numActive:]
}

// reset marks every constraint inactive, restoring registration order.
func (cv *constraintVector) reset() {
	for i := range cv.order {
		cv.order[i] = i
		cv.cons[i].vectorIndex = i
	}
	cv.numActive = 0
}
