package layout

import "github.com/mx-space/forms/internal/models"

// TableRow is a table_row node with its cells.
type TableRow struct {
	Row   *Node
	Cells []*Node
}

// TableLayout groups a table's descendants by section for display. Rows
// placed directly under the table count as body rows.
type TableLayout struct {
	Header []TableRow
	Body   []TableRow
	Footer []TableRow
	Stray  []*Node
}

// GroupTableSections returns the section view of a table node. ok is false
// when n is not a table element.
func GroupTableSections(n *Node) (TableLayout, bool) {
	var out TableLayout
	if n == nil || n.Type != NodeElement || n.ElementType != models.ElementTable {
		return out, false
	}
	for _, c := range n.Children {
		switch c.ElementType {
		case models.ElementTableHeader:
			out.Header = append(out.Header, rows(c, &out)...)
		case models.ElementTableBody:
			out.Body = append(out.Body, rows(c, &out)...)
		case models.ElementTableFooter:
			out.Footer = append(out.Footer, rows(c, &out)...)
		case models.ElementTableRow:
			out.Body = append(out.Body, row(c, &out))
		default:
			out.Stray = append(out.Stray, c)
		}
	}
	return out, true
}

func rows(section *Node, out *TableLayout) []TableRow {
	var rs []TableRow
	for _, c := range section.Children {
		if c.ElementType == models.ElementTableRow {
			rs = append(rs, row(c, out))
			continue
		}
		out.Stray = append(out.Stray, c)
	}
	return rs
}

func row(n *Node, out *TableLayout) TableRow {
	r := TableRow{Row: n}
	for _, c := range n.Children {
		if c.ElementType == models.ElementTableCell {
			r.Cells = append(r.Cells, c)
			continue
		}
		out.Stray = append(out.Stray, c)
	}
	return r
}

// TableGrid lists a table's cell element IDs row by row per section.
type TableGrid struct {
	Header [][]string `json:"header"`
	Body   [][]string `json:"body"`
	Footer [][]string `json:"footer"`
}

func (t TableLayout) Grid() TableGrid {
	return TableGrid{
		Header: gridRows(t.Header),
		Body:   gridRows(t.Body),
		Footer: gridRows(t.Footer),
	}
}

func gridRows(rs []TableRow) [][]string {
	out := make([][]string, 0, len(rs))
	for _, r := range rs {
		cells := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			if el := c.Element(); el != nil {
				cells = append(cells, el.ID)
			}
		}
		out = append(out, cells)
	}
	return out
}

// Tables collects the grid of every table in a forest, keyed by the table's
// element ID.
func Tables(nodes []*Node) map[string]TableGrid {
	out := map[string]TableGrid{}
	Walk(nodes, func(n *Node, _ int) bool {
		if tl, ok := GroupTableSections(n); ok {
			out[n.Element().ID] = tl.Grid()
		}
		return true
	})
	return out
}
