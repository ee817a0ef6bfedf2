package solver

import "math"

// qpscZeroGradient is the squared gradient norm treated as stationary.
const qpscZeroGradient = 1e-20

// qpsc drives gradient projection for goals with neighbor terms.
//
// The goal is F(p) = ½pᵀAp + bᵀp + c with A = 2·diag(w) + 2·L(neighbors) and
// b = −2wd. The solver works on y = p/t where t = 1/√Aᵢᵢ when scaling is
// enabled, so the Hessian in y is H = TAT. Each pass projects the gradient
// step ȳ = y − αg onto the feasible set with unit weights.
type qpsc struct {
	s *Solver
	n int

	diag []float64 // Aᵢᵢ
	t    []float64

	origDesired []float64
	origWeight  []float64
	origScale   []float64

	y     []float64 // positions at the start of the pass
	g     []float64 // gradient in y
	work  []float64
	hv    []float64
	first bool
	prevF float64
}

func newQpsc(s *Solver, scale bool) *qpsc {
	n := len(s.vars)
	q := &qpsc{
		s:           s,
		n:           n,
		diag:        make([]float64, n),
		t:           make([]float64, n),
		origDesired: make([]float64, n),
		origWeight:  make([]float64, n),
		origScale:   make([]float64, n),
		y:           make([]float64, n),
		g:           make([]float64, n),
		work:        make([]float64, n),
		hv:          make([]float64, n),
		first:       true,
	}
	for i := range s.vars {
		v := &s.vars[i]
		q.origDesired[i] = v.desired
		q.origWeight[i] = v.weight
		q.origScale[i] = v.scale
		d := 2 * v.weight
		for _, nb := range v.neighbors {
			d += 2 * nb.weight
		}
		q.diag[i] = d
		q.t[i] = 1
		if scale {
			q.t[i] = 1 / math.Sqrt(d)
		}
	}
	return q
}

// solveQpsc makes the problem feasible with the plain projection and then
// iterates gradient projection until convergence or a limit.
func (s *Solver) solveQpsc() error {
	scale := s.params.Advanced.ScaleInQpsc
	s.solution.AlgorithmUsed = QpscWithoutScaling
	if scale {
		s.solution.AlgorithmUsed = QpscWithScaling
	}

	if _, err := s.runProject(); err != nil {
		return err
	}
	q := newQpsc(s, scale)
	q.enterWorkingSpace()

	for !s.solution.ExecutionLimitExceeded() {
		more, err := q.preProject()
		if err != nil {
			return err
		}
		if !more {
			break
		}
		foundSplit, err := s.splitBlocks()
		if err != nil {
			return err
		}
		foundViolation, err := s.runProject()
		if err != nil {
			return err
		}
		if !q.postProject() && !foundSplit && !foundViolation {
			break
		}
	}

	q.leaveWorkingSpace()
	return nil
}

// enterWorkingSpace rescales variables to y = p/t with unit weight.
// Offsets are in scaled units and stay valid since y·(s·t) = p·s.
func (q *qpsc) enterWorkingSpace() {
	s := q.s
	for i := range s.vars {
		v := &s.vars[i]
		v.actual /= q.t[i]
		v.scale = q.origScale[i] * q.t[i]
		v.weight = 1
		v.desired = v.actual
	}
	q.rebaseBlocks()
}

// leaveWorkingSpace restores the caller's desired positions, weights and
// scales and maps positions back to p = t·y.
func (q *qpsc) leaveWorkingSpace() {
	s := q.s
	for i := range s.vars {
		v := &s.vars[i]
		v.actual *= q.t[i]
		v.desired = q.origDesired[i]
		v.weight = q.origWeight[i]
		v.scale = q.origScale[i]
	}
	q.rebaseBlocks()
}

// rebaseBlocks re-derives block scale and reference from the first variable
// after variable scales changed.
func (q *qpsc) rebaseBlocks() {
	s := q.s
	for _, b := range s.blocks.blocks {
		first := &s.vars[b.vars[0]]
		b.scale = first.scale
		b.ref = (first.actual*first.scale - first.offset) / b.scale
		s.touch(b)
	}
}

// gradient writes g = T(A(Ty) + b) for the current positions.
func (q *qpsc) gradient() {
	s := q.s
	for i := range s.vars {
		q.work[i] = q.t[i] * s.vars[i].actual
	}
	for i := range s.vars {
		v := &s.vars[i]
		gi := 2*q.origWeight[i]*q.work[i] - 2*q.origWeight[i]*q.origDesired[i]
		for _, nb := range v.neighbors {
			gi += 2 * nb.weight * (q.work[i] - q.work[nb.other])
		}
		q.g[i] = q.t[i] * gi
	}
}

// hessianTimes writes H·x into q.hv.
func (q *qpsc) hessianTimes(x []float64) {
	s := q.s
	for i := range s.vars {
		q.work[i] = q.t[i] * x[i]
	}
	for i := range s.vars {
		hi := 2 * q.origWeight[i] * q.work[i]
		for _, nb := range s.vars[i].neighbors {
			hi += 2 * nb.weight * (q.work[i] - q.work[nb.other])
		}
		q.hv[i] = q.t[i] * hi
	}
}

// goal evaluates F at the current positions, mapped back to user space.
func (q *qpsc) goal() float64 {
	s := q.s
	var f float64
	for i := range s.vars {
		p := q.t[i] * s.vars[i].actual
		d := p - q.origDesired[i]
		f += q.origWeight[i] * d * d
		for _, nb := range s.vars[i].neighbors {
			if nb.other > i {
				dd := p - q.t[nb.other]*s.vars[nb.other].actual
				f += nb.weight * dd * dd
			}
		}
	}
	return f
}

// preProject sets each variable's desired position to the unconstrained
// steepest-descent step. It returns false when the gradient vanishes.
func (q *qpsc) preProject() (bool, error) {
	s := q.s
	for i := range s.vars {
		q.y[i] = s.vars[i].actual
	}
	q.prevF = q.goal()
	q.gradient()

	gg := dot(q.g, q.g)
	if gg < qpscZeroGradient {
		return false, nil
	}
	q.hessianTimes(q.g)
	gHg := dot(q.g, q.hv)
	if gHg <= 0 {
		return false, nil
	}
	alpha := gg / gHg
	for i := range s.vars {
		s.vars[i].desired = q.y[i] - alpha*q.g[i]
	}
	for _, b := range s.blocks.blocks {
		if err := s.updateReferencePos(b); err != nil {
			return false, err
		}
	}
	return true, nil
}

// postProject takes the step y += β(ŷ − y) along the projected direction
// and reports whether the goal is still decreasing meaningfully.
func (q *qpsc) postProject() bool {
	s := q.s
	d := make([]float64, q.n)
	for i := range s.vars {
		d[i] = s.vars[i].actual - q.y[i]
	}

	beta := 1.0
	if !q.first {
		q.hessianTimes(d)
		if dHd := dot(d, q.hv); dHd > 0 {
			beta = math.Max(0, math.Min(1, -dot(q.g, d)/dHd))
		}
	}
	q.first = false

	for i := range s.vars {
		s.vars[i].actual = q.y[i] + beta*d[i]
	}
	newF := q.goal()
	diff := q.prevF - newF
	converged := math.Abs(diff) < s.params.QpscConvergenceEpsilon ||
		math.Abs(diff) < s.params.QpscConvergenceQuotient*math.Abs(q.prevF)
	return !converged
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
