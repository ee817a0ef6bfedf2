package problem

import (
	"fmt"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/nudge"
	"github.com/matzehuels/projector/pkg/solver"
)

// Build registers a projection problem with a new solver. The returned
// slice maps Variables[i] to its solver handle.
func (p *Problem) Build(opts ...solver.Option) (*solver.Solver, []solver.VariableID, error) {
	if p.Nudge != nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidState, "Build called on a nudge problem")
	}
	s := solver.New(opts...)
	handles := make([]solver.VariableID, len(p.Variables))
	byID := make(map[string]solver.VariableID, len(p.Variables))
	for i, v := range p.Variables {
		id, err := s.AddVariable(v.Desired, solver.WithWeight(orOne(v.Weight)), solver.WithScale(orOne(v.Scale)))
		if err != nil {
			return nil, nil, errors.Wrap(errors.GetCode(err), err, "variable %q", v.ID)
		}
		handles[i] = id
		byID[v.ID] = id
	}
	for i, c := range p.Constraints {
		add := s.AddConstraint
		if c.Equality {
			add = s.AddEqualityConstraint
		}
		if _, err := add(byID[c.Left], byID[c.Right], c.Gap); err != nil {
			return nil, nil, errors.Wrap(errors.GetCode(err), err, "constraint %d", i)
		}
	}
	for i, n := range p.Neighbors {
		if err := s.AddNeighborPair(byID[n.A], byID[n.B], orOne(n.Weight)); err != nil {
			return nil, nil, errors.Wrap(errors.GetCode(err), err, "neighbor %d", i)
		}
	}
	return s, handles, nil
}

// Solve builds and solves p, applying any gap updates with a second solve.
func (p *Problem) Solve(opts ...solver.Option) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Nudge != nil {
		return p.solveNudge(opts...)
	}

	s, handles, err := p.Build(opts...)
	if err != nil {
		return nil, err
	}
	params := p.Parameters
	sol, err := s.Solve(&params)
	if err != nil {
		return nil, err
	}
	if len(p.Updates) > 0 {
		for _, u := range p.Updates {
			if err := s.SetConstraintUpdate(solver.ConstraintID(u.Constraint), u.Gap); err != nil {
				return nil, errors.Wrap(errors.GetCode(err), err, "update constraint %d", u.Constraint)
			}
		}
		if sol, err = s.Solve(&params); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Name:      p.Name,
		Kind:      KindSolve,
		Solution:  sol,
		Converged: !sol.ExecutionLimitExceeded(),
	}
	byHandle := make(map[solver.VariableID]string, len(handles))
	for i, h := range handles {
		id := p.Variables[i].ID
		byHandle[h] = id
		res.Positions = append(res.Positions, Position{ID: id, Position: s.Position(h)})
	}
	for i := range p.Constraints {
		c, _ := s.Constraint(solver.ConstraintID(i))
		if c.IsUnsatisfiable {
			res.Unsatisfiable = append(res.Unsatisfiable, i)
		}
	}
	for _, b := range s.Blocks() {
		ids := make([]string, len(b))
		for i, h := range b {
			ids[i] = byHandle[h]
		}
		res.Blocks = append(res.Blocks, ids)
	}
	return res, nil
}

func (p *Problem) solveNudge(opts ...solver.Option) (*Result, error) {
	n := p.Nudge
	u := nudge.NewUniformSolver(n.Separation, opts...)
	params := p.Parameters
	u.SetParameters(&params)

	index := make(map[string]int, len(n.Items))
	for i, it := range n.Items {
		index[it.ID] = i
		var err error
		if it.Fixed {
			err = u.AddFixedVariable(i, it.Current)
		} else {
			err = u.AddVariable(i, it.Current, it.Ideal, it.Width)
		}
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "item %q", it.ID)
		}
		if it.Fixed {
			continue
		}
		if it.Low != nil {
			if err := u.SetLowBound(i, *it.Low); err != nil {
				return nil, err
			}
		}
		if it.High != nil {
			if err := u.SetUpperBound(i, *it.High); err != nil {
				return nil, err
			}
		}
	}
	for i, c := range n.Constraints {
		if err := u.AddConstraint(index[c.Left], index[c.Right]); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "nudge constraint %d", i)
		}
	}

	ok, err := u.Solve()
	if err != nil {
		return nil, err
	}
	res := &Result{
		Name:      p.Name,
		Kind:      KindNudge,
		Solution:  u.Solution(),
		Converged: ok,
	}
	for i, it := range n.Items {
		res.Positions = append(res.Positions, Position{ID: it.ID, Position: u.Position(i)})
	}
	for _, rc := range u.RemovedConstraints() {
		res.RemovedConstraints = append(res.RemovedConstraints, NudgeOrder{
			Left:  n.itemName(rc[0]),
			Right: n.itemName(rc[1]),
		})
	}
	return res, nil
}

// itemName maps a nudge item index to its id. Indices past the items are
// synthetic bound items.
func (n *Nudge) itemName(i int) string {
	if i < len(n.Items) {
		return n.Items[i].ID
	}
	return fmt.Sprintf("bound:%d", i-len(n.Items))
}

func orOne(v *float64) float64 {
	if v == nil {
		return 1
	}
	return *v
}
