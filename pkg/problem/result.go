package problem

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/projector/pkg/solver"
)

// Position is the resolved position of one variable or item.
type Position struct {
	ID       string  `json:"id"`
	Position float64 `json:"position"`
}

// Result is the outcome of solving a Problem.
type Result struct {
	RunID       string `json:"run_id,omitempty"`
	ProblemHash string `json:"problem_hash,omitempty"`
	Name        string `json:"name,omitempty"`
	Kind        string `json:"kind"`
	CacheHit    bool   `json:"cache_hit"`

	// Converged is false when a limit stopped the solve, or for nudge
	// problems when a fixed item could not be held in place.
	Converged bool            `json:"converged"`
	Positions []Position      `json:"positions"`
	Solution  solver.Solution `json:"solution"`

	// Unsatisfiable lists indices into Problem.Constraints.
	Unsatisfiable []int `json:"unsatisfiable_constraints,omitempty"`
	// Blocks is the final partition of variable ids (projection problems).
	Blocks [][]string `json:"blocks,omitempty"`
	// RemovedConstraints are ordering constraints dropped to break cycles
	// (nudge problems).
	RemovedConstraints []NudgeOrder `json:"removed_constraints,omitempty"`
}

// PositionOf returns the resolved position of id.
func (r *Result) PositionOf(id string) (float64, bool) {
	for _, p := range r.Positions {
		if p.ID == id {
			return p.Position, true
		}
	}
	return 0, false
}

// MarshalResult encodes r as JSON.
func MarshalResult(r *Result) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

// UnmarshalResult decodes a result produced by MarshalResult.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}
