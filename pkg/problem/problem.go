package problem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/projector/pkg/errors"
	"github.com/matzehuels/projector/pkg/solver"
)

// Kinds of problem a file can describe.
const (
	KindSolve = "solve"
	KindNudge = "nudge"
)

// File formats understood by Read and Write.
const (
	FormatJSON = "json"
	FormatTOML = "toml"
)

// Problem is the on-disk and over-the-wire description of a projection or
// nudging problem.
type Problem struct {
	Name string `toml:"name,omitempty" json:"name,omitempty"`

	Variables   []Variable   `toml:"variables,omitempty" json:"variables,omitempty"`
	Constraints []Constraint `toml:"constraints,omitempty" json:"constraints,omitempty"`
	Neighbors   []Neighbor   `toml:"neighbors,omitempty" json:"neighbors,omitempty"`

	// Updates are gap changes applied after the first solve, followed by a
	// second solve from scratch.
	Updates []GapUpdate `toml:"updates,omitempty" json:"updates,omitempty"`

	// Nudge, when set, makes this a nudging problem. Variables,
	// Constraints and Neighbors must then be empty.
	Nudge *Nudge `toml:"nudge,omitempty" json:"nudge,omitempty"`

	Parameters solver.Parameters `toml:"parameters" json:"parameters"`
}

// Variable is a movable position. Unset Weight and Scale mean 1; an
// explicit zero is rejected by the solver.
type Variable struct {
	ID      string   `toml:"id" json:"id"`
	Desired float64  `toml:"desired" json:"desired"`
	Weight  *float64 `toml:"weight,omitempty" json:"weight,omitempty"`
	Scale   *float64 `toml:"scale,omitempty" json:"scale,omitempty"`
}

// Constraint requires Left + Gap <= Right (== when Equality is set).
type Constraint struct {
	Left     string  `toml:"left" json:"left"`
	Right    string  `toml:"right" json:"right"`
	Gap      float64 `toml:"gap" json:"gap"`
	Equality bool    `toml:"equality,omitempty" json:"equality,omitempty"`
}

// Neighbor pulls two variables together with the given weight (default 1).
type Neighbor struct {
	A      string   `toml:"a" json:"a"`
	B      string   `toml:"b" json:"b"`
	Weight *float64 `toml:"weight,omitempty" json:"weight,omitempty"`
}

// GapUpdate replaces the gap of Constraints[Constraint].
type GapUpdate struct {
	Constraint int     `toml:"constraint" json:"constraint"`
	Gap        float64 `toml:"gap" json:"gap"`
}

// Nudge describes a uniform-separation nudging problem.
type Nudge struct {
	Separation  float64      `toml:"separation" json:"separation"`
	Items       []NudgeItem  `toml:"items" json:"items"`
	Constraints []NudgeOrder `toml:"constraints,omitempty" json:"constraints,omitempty"`
}

// NudgeItem is one item to place. Fixed items ignore Ideal, Width and
// the bounds, and stay at Current.
type NudgeItem struct {
	ID      string   `toml:"id" json:"id"`
	Current float64  `toml:"current" json:"current"`
	Ideal   float64  `toml:"ideal" json:"ideal"`
	Width   float64  `toml:"width,omitempty" json:"width,omitempty"`
	Fixed   bool     `toml:"fixed,omitempty" json:"fixed,omitempty"`
	Low     *float64 `toml:"low,omitempty" json:"low,omitempty"`
	High    *float64 `toml:"high,omitempty" json:"high,omitempty"`
}

// NudgeOrder requires Left to sit left of Right.
type NudgeOrder struct {
	Left  string `toml:"left" json:"left"`
	Right string `toml:"right" json:"right"`
}

// Float returns a pointer to v, for the optional Weight and Scale fields.
func Float(v float64) *float64 { return &v }

// New returns an empty problem carrying the default parameters.
func New() *Problem {
	return &Problem{Parameters: *solver.DefaultParameters()}
}

// Kind reports whether p is a projection or a nudging problem.
func (p *Problem) Kind() string {
	if p.Nudge != nil {
		return KindNudge
	}
	return KindSolve
}

// FormatFromPath infers the file format from the extension. Anything but
// .toml is treated as JSON.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// Read decodes a problem. Fields absent from the input keep their
// defaults, including every solver parameter.
func Read(r io.Reader, format string) (*Problem, error) {
	p := New()
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(p); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode toml")
		}
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
		}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown problem format %q", format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFile reads and validates a problem file.
func ReadFile(path string) (*Problem, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, FormatFromPath(path))
}

// Write encodes p in the given format.
func Write(p *Problem, w io.Writer, format string) error {
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(p); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return errors.New(errors.ErrCodeUnsupported, "unknown problem format %q", format)
	}
}

// Marshal returns the canonical JSON encoding used for hashing.
func Marshal(p *Problem) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks references and identifiers. Numeric checks are left to
// the solver, which reports them with the offending value.
func (p *Problem) Validate() error {
	if p.Nudge != nil {
		if len(p.Variables) > 0 || len(p.Constraints) > 0 || len(p.Neighbors) > 0 || len(p.Updates) > 0 {
			return errors.New(errors.ErrCodeInvalidInput, "a nudge problem cannot also declare variables, constraints, neighbors or updates")
		}
		return p.Nudge.validate()
	}

	ids, err := indexIDs(len(p.Variables), func(i int) string { return p.Variables[i].ID })
	if err != nil {
		return err
	}
	for i, c := range p.Constraints {
		if err := checkRefs(ids, "constraint", i, c.Left, c.Right); err != nil {
			return err
		}
	}
	for i, n := range p.Neighbors {
		if err := checkRefs(ids, "neighbor", i, n.A, n.B); err != nil {
			return err
		}
	}
	for i, u := range p.Updates {
		if u.Constraint < 0 || u.Constraint >= len(p.Constraints) {
			return errors.New(errors.ErrCodeInvalidInput, "update %d: constraint index %d out of range", i, u.Constraint)
		}
	}
	return nil
}

func (n *Nudge) validate() error {
	ids, err := indexIDs(len(n.Items), func(i int) string { return n.Items[i].ID })
	if err != nil {
		return err
	}
	for i, c := range n.Constraints {
		if err := checkRefs(ids, "nudge constraint", i, c.Left, c.Right); err != nil {
			return err
		}
	}
	return nil
}

func indexIDs(n int, id func(int) string) (map[string]int, error) {
	ids := make(map[string]int, n)
	for i := range n {
		v := id(i)
		if v == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "entry %d has an empty id", i)
		}
		if _, dup := ids[v]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate id %q", v)
		}
		ids[v] = i
	}
	return ids, nil
}

func checkRefs(ids map[string]int, what string, i int, refs ...string) error {
	for _, r := range refs {
		if _, ok := ids[r]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "%s %d references unknown id %q", what, i, r)
		}
	}
	return nil
}
