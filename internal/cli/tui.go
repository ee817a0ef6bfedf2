package cli

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/projector/pkg/problem"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// Sort orders of the inspector.
const (
	sortByInput = iota
	sortByPosition
	sortByShift
)

var sortNames = []string{"input", "position", "shift"}

// =============================================================================
// InspectModel - Interactive solution browser
// =============================================================================

// inspectRow is one variable or nudge item with its solved position.
type inspectRow struct {
	ID       string
	Desired  float64
	Position float64
	Block    int
	Fixed    bool
}

// Shift is how far the solver moved the variable.
func (r inspectRow) Shift() float64 { return r.Position - r.Desired }

// InspectModel is the bubbletea model for browsing a solution.
type InspectModel struct {
	Title  string
	Rows   []inspectRow
	Cursor int
	Height int
	Offset int
	Sort   int

	// related maps a variable id to descriptions of the constraints on it.
	related map[string][]string
	result  *problem.Result
}

// NewInspectModel builds the browser for a solved problem.
func NewInspectModel(p *problem.Problem, res *problem.Result) InspectModel {
	m := InspectModel{
		Title:   p.Name,
		Height:  15,
		related: make(map[string][]string),
		result:  res,
	}
	if m.Title == "" {
		m.Title = "Solution"
	}

	blockOf := make(map[string]int)
	for i, b := range res.Blocks {
		for _, id := range b {
			blockOf[id] = i
		}
	}
	unsat := make(map[int]bool, len(res.Unsatisfiable))
	for _, i := range res.Unsatisfiable {
		unsat[i] = true
	}

	if p.Nudge != nil {
		for _, it := range p.Nudge.Items {
			pos, _ := res.PositionOf(it.ID)
			desired := it.Ideal
			if it.Fixed {
				desired = it.Current
			}
			m.Rows = append(m.Rows, inspectRow{ID: it.ID, Desired: desired, Position: pos, Block: -1, Fixed: it.Fixed})
		}
		for _, o := range p.Nudge.Constraints {
			desc := fmt.Sprintf("%s < %s", o.Left, o.Right)
			m.related[o.Left] = append(m.related[o.Left], desc)
			m.related[o.Right] = append(m.related[o.Right], desc)
		}
		return m
	}

	for _, v := range p.Variables {
		pos, _ := res.PositionOf(v.ID)
		block, ok := blockOf[v.ID]
		if !ok {
			block = -1
		}
		m.Rows = append(m.Rows, inspectRow{ID: v.ID, Desired: v.Desired, Position: pos, Block: block})
	}
	for i, c := range p.Constraints {
		op := "<="
		if c.Equality {
			op = "=="
		}
		desc := fmt.Sprintf("#%d %s + %s %s %s", i, c.Left, fmtFloat(c.Gap), op, c.Right)
		if unsat[i] {
			desc += " (unsatisfiable)"
		}
		m.related[c.Left] = append(m.related[c.Left], desc)
		m.related[c.Right] = append(m.related[c.Right], desc)
	}
	return m
}

func (m InspectModel) Init() tea.Cmd {
	return nil
}

func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "s":
			m.Sort = (m.Sort + 1) % len(sortNames)
			m.resort()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-12, 5)
	}
	return m, nil
}

// resort reorders rows and keeps the cursor on the same variable.
func (m *InspectModel) resort() {
	var current string
	if len(m.Rows) > 0 {
		current = m.Rows[m.Cursor].ID
	}
	switch m.Sort {
	case sortByPosition:
		slices.SortStableFunc(m.Rows, func(a, b inspectRow) int { return cmp.Compare(a.Position, b.Position) })
	case sortByShift:
		slices.SortStableFunc(m.Rows, func(a, b inspectRow) int {
			return cmp.Compare(math.Abs(b.Shift()), math.Abs(a.Shift()))
		})
	default:
		slices.SortStableFunc(m.Rows, func(a, b inspectRow) int { return cmp.Compare(m.inputIndex(a.ID), m.inputIndex(b.ID)) })
	}
	for i, r := range m.Rows {
		if r.ID == current {
			m.Cursor = i
		}
	}
	m.Offset = max(0, min(m.Offset, m.Cursor))
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m InspectModel) inputIndex(id string) int {
	for i, p := range m.result.Positions {
		if p.ID == id {
			return i
		}
	}
	return len(m.result.Positions)
}

func (m InspectModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("↑/↓ navigate  s sort (%s)  q quit", sortNames[m.Sort])))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		block := ""
		if r.Block >= 0 {
			block = fmt.Sprint(r.Block)
		}
		if r.Fixed {
			block = "fixed"
		}
		rows = append(rows, []string{cursor, r.ID, fmtFloat(r.Desired), fmtFloat(r.Position), fmtFloat(r.Shift()), block})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Variable", "Desired", "Position", "Shift", "Block").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 4 && math.Abs(m.Rows[idx].Shift()) > 1e-9 {
				base = styleMoved
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Rows)), len(m.Rows))))
	b.WriteString("\n\n")

	if len(m.Rows) > 0 {
		id := m.Rows[m.Cursor].ID
		b.WriteString(listSelectedStyle.Render(id))
		b.WriteString("\n")
		related := m.related[id]
		if len(related) == 0 {
			b.WriteString(listDimStyle.Render("  no constraints"))
			b.WriteString("\n")
		}
		for _, desc := range related {
			b.WriteString("  " + desc + "\n")
		}
	}
	return b.String()
}
