package solver_test

import (
	"fmt"

	"github.com/matzehuels/projector/pkg/solver"
)

func Example() {
	s := solver.New()
	a, _ := s.AddVariable(0)
	b, _ := s.AddVariable(10)
	s.AddConstraint(a, b, 20)

	sol, err := s.Solve(nil)
	if err != nil {
		panic(err)
	}
	fmt.Printf("a=%.2f b=%.2f\n", s.Position(a), s.Position(b))
	fmt.Println("unsatisfiable:", sol.NumberOfUnsatisfiableConstraints)
	// Output:
	// a=-5.00 b=15.00
	// unsatisfiable: 0
}

func ExampleSolver_AddEqualityConstraint() {
	s := solver.New()
	a, _ := s.AddVariable(0)
	b, _ := s.AddVariable(0)
	c, _ := s.AddVariable(0)
	s.AddEqualityConstraint(a, b, 3)
	s.AddEqualityConstraint(b, c, 3)
	s.AddEqualityConstraint(a, c, 9) // contradicts the first two

	sol, _ := s.Solve(nil)
	fmt.Println("unsatisfiable:", sol.NumberOfUnsatisfiableConstraints)
	// Output:
	// unsatisfiable: 1
}

func ExampleSolver_AddNeighborPair() {
	s := solver.New()
	a, _ := s.AddVariable(0)
	b, _ := s.AddVariable(10)
	s.AddConstraint(a, b, 20)
	s.AddNeighborPair(a, b, 1)

	sol, _ := s.Solve(nil)
	fmt.Println(sol.AlgorithmUsed)
	fmt.Printf("a=%.1f b=%.1f\n", s.Position(a), s.Position(b))
	// Output:
	// qpsc-with-scaling
	// a=-5.0 b=15.0
}

func ExampleShell() {
	sh := solver.NewShell()
	sh.AddFixedVariable(1, 0)
	sh.AddVariableWithIdealPosition(2, -3)
	sh.AddLeftRightSeparationConstraint(1, 2, 4)

	ok, _ := sh.Solve(nil)
	fmt.Println(ok)
	fmt.Printf("%.2f\n", sh.GetVariableResolvedPosition(2))
	// Output:
	// true
	// 4.00
}
