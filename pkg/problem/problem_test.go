package problem

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/solver"
)

const twoVarsTOML = `
name = "two"

[[variables]]
id = "a"
desired = 0.0

[[variables]]
id = "b"
desired = 10.0

[[constraints]]
left = "a"
right = "b"
gap = 20.0

[parameters]
gap_tolerance = 0.001
`

func approx(a, b float64) bool { return math.Abs(a-b) <= 1e-6 }

func mustPos(t *testing.T, r *Result, id string) float64 {
	t.Helper()
	p, ok := r.PositionOf(id)
	if !ok {
		t.Fatalf("no position for %q", id)
	}
	return p
}

func TestReadTOML(t *testing.T) {
	p, err := Read(strings.NewReader(twoVarsTOML), FormatTOML)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p.Name != "two" || len(p.Variables) != 2 || len(p.Constraints) != 1 {
		t.Fatalf("decoded %+v", p)
	}
	if p.Parameters.GapTolerance != 0.001 {
		t.Errorf("GapTolerance = %g, want 0.001", p.Parameters.GapTolerance)
	}
	// Unset parameters keep their defaults.
	def := solver.DefaultParameters()
	if p.Parameters.OuterProjectIterationsLimit != def.OuterProjectIterationsLimit {
		t.Errorf("OuterProjectIterationsLimit = %d, want default %d",
			p.Parameters.OuterProjectIterationsLimit, def.OuterProjectIterationsLimit)
	}
	if !p.Parameters.Advanced.UseViolationCache {
		t.Error("UseViolationCache should keep its default")
	}
	if p.Kind() != KindSolve {
		t.Errorf("Kind() = %s, want %s", p.Kind(), KindSolve)
	}

	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if a, b := mustPos(t, res, "a"), mustPos(t, res, "b"); !approx(a, -5) || !approx(b, 15) {
		t.Errorf("positions = (%g, %g), want (-5, 15)", a, b)
	}
	if !res.Converged {
		t.Error("Converged = false")
	}
	if len(res.Blocks) != 1 || len(res.Blocks[0]) != 2 {
		t.Errorf("blocks = %v, want one block of two", res.Blocks)
	}
}

func TestReadJSONWithUpdates(t *testing.T) {
	in := `{
		"variables": [{"id": "a", "desired": 0}, {"id": "b", "desired": 10}],
		"constraints": [{"left": "a", "right": "b", "gap": 20}],
		"updates": [{"constraint": 0, "gap": 4}]
	}`
	p, err := Read(strings.NewReader(in), FormatJSON)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	// The relaxed gap lets both variables return to their desired positions.
	if a, b := mustPos(t, res, "a"), mustPos(t, res, "b"); !approx(a, 0) || !approx(b, 10) {
		t.Errorf("positions = (%g, %g), want (0, 10)", a, b)
	}
}

func TestSolveEqualityAndWeights(t *testing.T) {
	p := New()
	p.Variables = []Variable{
		{ID: "a", Desired: 0},
		{ID: "b", Desired: 10},
	}
	p.Constraints = []Constraint{{Left: "a", Right: "b", Gap: 4, Equality: true}}

	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if a, b := mustPos(t, res, "a"), mustPos(t, res, "b"); !approx(a, 3) || !approx(b, 7) {
		t.Errorf("positions = (%g, %g), want (3, 7)", a, b)
	}
}

func TestSolveReportsUnsatisfiable(t *testing.T) {
	p := New()
	p.Variables = []Variable{{ID: "a"}, {ID: "b"}}
	p.Constraints = []Constraint{
		{Left: "a", Right: "b", Gap: 1},
		{Left: "b", Right: "a", Gap: 1},
	}
	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Unsatisfiable) != 1 {
		t.Errorf("unsatisfiable = %v, want exactly one", res.Unsatisfiable)
	}
	if res.Solution.NumberOfUnsatisfiableConstraints != 1 {
		t.Errorf("solution reports %d unsatisfiable", res.Solution.NumberOfUnsatisfiableConstraints)
	}
}

func TestSolveNudge(t *testing.T) {
	in := `
[nudge]
separation = 1.0

[[nudge.items]]
id = "x"
current = 0.0
ideal = 0.0
width = 2.0
low = 0.0

[[nudge.items]]
id = "y"
current = 1.0
ideal = 1.0
width = 2.0

[[nudge.items]]
id = "z"
current = 2.0
ideal = 2.0
width = 2.0

[[nudge.constraints]]
left = "x"
right = "y"

[[nudge.constraints]]
left = "y"
right = "z"
`
	p, err := Read(strings.NewReader(in), FormatTOML)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p.Kind() != KindNudge {
		t.Fatalf("Kind() = %s, want %s", p.Kind(), KindNudge)
	}
	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for id, want := range map[string]float64{"x": 2, "y": 5, "z": 8} {
		if got := mustPos(t, res, id); !approx(got, want) {
			t.Errorf("%s = %g, want %g", id, got, want)
		}
	}
	if !res.Converged {
		t.Error("Converged = false")
	}
}

func TestSolveNudgeRemovesCycle(t *testing.T) {
	p := New()
	p.Nudge = &Nudge{
		Separation: 1,
		Items: []NudgeItem{
			{ID: "a", Current: 0, Ideal: 0},
			{ID: "b", Current: 5, Ideal: 5},
		},
		Constraints: []NudgeOrder{{Left: "a", Right: "b"}, {Left: "b", Right: "a"}},
	}
	res, err := p.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.RemovedConstraints) != 1 {
		t.Fatalf("removed = %v, want one constraint", res.RemovedConstraints)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
	}{
		{"empty id", Problem{Variables: []Variable{{ID: ""}}}},
		{"duplicate id", Problem{Variables: []Variable{{ID: "a"}, {ID: "a"}}}},
		{"unknown constraint ref", Problem{
			Variables:   []Variable{{ID: "a"}},
			Constraints: []Constraint{{Left: "a", Right: "b"}},
		}},
		{"unknown neighbor ref", Problem{
			Variables: []Variable{{ID: "a"}},
			Neighbors: []Neighbor{{A: "a", B: "c"}},
		}},
		{"update out of range", Problem{
			Variables: []Variable{{ID: "a"}},
			Updates:   []GapUpdate{{Constraint: 0, Gap: 1}},
		}},
		{"nudge mixed with variables", Problem{
			Variables: []Variable{{ID: "a"}},
			Nudge:     &Nudge{},
		}},
		{"nudge unknown ref", Problem{
			Nudge: &Nudge{
				Items:       []NudgeItem{{ID: "a"}},
				Constraints: []NudgeOrder{{Left: "a", Right: "q"}},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Validate() = %v, want %s", err, errors.ErrCodeInvalidInput)
			}
		})
	}
}

func TestSolvePropagatesSolverErrors(t *testing.T) {
	p := New()
	p.Variables = []Variable{{ID: "a", Weight: Float(-1)}}
	_, err := p.Solve()
	if !errors.Is(err, errors.ErrCodeInvalidArgument) {
		t.Errorf("Solve() = %v, want %s", err, errors.ErrCodeInvalidArgument)
	}
}

func TestExplicitZeroWeightRejected(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
		ok     bool
	}{
		{"json weight 0", FormatJSON, `{"variables": [{"id": "a", "weight": 0}]}`, false},
		{"json scale 0", FormatJSON, `{"variables": [{"id": "a", "scale": 0}]}`, false},
		{"toml weight 0", FormatTOML, "[[variables]]\nid = \"a\"\nweight = 0.0\n", false},
		{"neighbor weight 0", FormatJSON, `{"variables": [{"id": "a"}, {"id": "b"}], "neighbors": [{"a": "a", "b": "b", "weight": 0}]}`, false},
		{"unset defaults to 1", FormatJSON, `{"variables": [{"id": "a"}, {"id": "b"}], "neighbors": [{"a": "a", "b": "b"}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Read(strings.NewReader(tt.input), tt.format)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			_, err = p.Solve()
			if tt.ok && err != nil {
				t.Errorf("Solve() = %v", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrCodeInvalidArgument) {
				t.Errorf("Solve() = %v, want %s", err, errors.ErrCodeInvalidArgument)
			}
		})
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(strings.NewReader(`{"bogus": 1}`), FormatJSON); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("unknown field: %v", err)
	}
	if _, err := Read(strings.NewReader(`variables = [`), FormatTOML); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("bad toml: %v", err)
	}
	if _, err := Read(strings.NewReader(``), "yaml"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("unknown format: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "two.toml")
	if err := os.WriteFile(path, []byte(twoVarsTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(p.Variables) != 2 {
		t.Errorf("variables = %d, want 2", len(p.Variables))
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: %v", err)
	}
}

func TestWriteJSONReadsBack(t *testing.T) {
	p, err := Read(strings.NewReader(twoVarsTOML), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(p, &buf, FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}
	q, err := Read(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	a, _ := Marshal(p)
	b, _ := Marshal(q)
	if !bytes.Equal(a, b) {
		t.Errorf("canonical encodings differ:\n%s\n%s", a, b)
	}
}

func TestResultKeepsAlgorithmName(t *testing.T) {
	r := &Result{Kind: KindSolve, Solution: solver.Solution{AlgorithmUsed: solver.QpscWithScaling}}
	data, err := MarshalResult(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"qpsc-with-scaling"`)) {
		t.Errorf("encoded result lacks algorithm name: %s", data)
	}
	got, err := UnmarshalResult(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Solution.AlgorithmUsed != solver.QpscWithScaling {
		t.Errorf("AlgorithmUsed = %v", got.Solution.AlgorithmUsed)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"p.toml": FormatTOML,
		"P.TOML": FormatTOML,
		"p.json": FormatJSON,
		"p":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestExampleProblems(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "problems", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no example problems")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			res, err := p.Solve()
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if len(res.Positions) == 0 {
				t.Error("no positions")
			}
		})
	}
}
