package solver

// VariableID is an opaque handle returned by [Solver.AddVariable].
// Callers attach their own payload by keying on it.
type VariableID int

type neighbor struct {
	other  int
	weight float64
}

type variable struct {
	desired float64
	weight  float64
	scale   float64

	actual float64
	offset float64 // in scaled units: actual*scale == block.scale*block.ref + offset
	block  *block

	leftOf  []int // constraints where this variable is Left
	rightOf []int // constraints where this variable is Right

	neighbors []neighbor
}

// Variable is a read-only view of a registered variable.
type Variable struct {
	ID         VariableID
	DesiredPos float64
	Weight     float64
	Scale      float64
	ActualPos  float64
}

// VariableOption customizes a variable at registration.
type VariableOption func(*variableOptions)

type variableOptions struct {
	weight float64
	scale  float64
}

// WithWeight sets the weight of the variable's deviation term. Default 1.
func WithWeight(w float64) VariableOption {
	return func(o *variableOptions) { o.weight = w }
}

// WithScale sets the variable's scale. Constraints act on actual*scale. Default 1.
func WithScale(s float64) VariableOption {
	return func(o *variableOptions) { o.scale = s }
}

// updateActual recomputes actual from the owning block.
func (v *variable) updateActual() {
	v.actual = (v.block.scale*v.block.ref + v.offset) / v.scale
}

// dfdv is the derivative of the goal term with respect to the scaled position.
func (v *variable) dfdv() float64 {
	return 2 * v.weight * (v.actual - v.desired) / v.scale
}
