package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	impactSheet = "Impact"
	edgesSheet  = "Edges"
)

// TableHeader is the column layout of the tabular formats.
var TableHeader = []string{
	"node_id",
	"type_name",
	"display_name",
	"direction",
	"distance",
	"visit_order",
	"score",
	"risk",
	"incomplete",
	"on_critical_path",
	"missing_upstream",
	"missing_downstream",
	"gap_reason",
}

var edgeHeader = []string{"source", "target", "relationship_type", "confidence"}

// tableRow is one node in one direction. Nodes without impact records get a
// single row with an empty direction.
type tableRow struct {
	node   *NodeRecord
	impact *ImpactRecord
}

func tableRows(doc *Document) []tableRow {
	var rows []tableRow
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if len(n.Impact) == 0 {
			rows = append(rows, tableRow{node: n})
			continue
		}
		for j := range n.Impact {
			rows = append(rows, tableRow{node: n, impact: &n.Impact[j]})
		}
	}
	return rows
}

// cells returns the row values; numeric columns stay numeric and blanks are
// nil so spreadsheets leave them empty.
func (r tableRow) cells() []any {
	out := make([]any, 0, len(TableHeader))
	out = append(out, string(r.node.ID), r.node.TypeName, r.node.DisplayName)

	if r.impact != nil {
		var score any
		if r.impact.Score != nil {
			score = *r.impact.Score
		}
		out = append(out,
			r.impact.Direction,
			r.impact.Distance,
			r.impact.VisitOrder,
			score,
			string(r.impact.Risk),
		)
	} else {
		out = append(out, nil, nil, nil, nil, nil)
	}

	onPath := r.impact != nil && r.impact.OnCriticalPath
	out = append(out, r.node.Incomplete, onPath)

	if g := r.node.Gap; g != nil {
		out = append(out, g.MissingUpstream, g.MissingDownstream, string(g.Reason))
	} else {
		out = append(out, nil, nil, nil)
	}
	return out
}

func (r tableRow) strings() []string {
	cells := r.cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = formatCell(c)
	}
	return out
}

func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprint(c)
	}
}

func writeCSV(rows []tableRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(TableHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.strings()); err != nil {
			return nil, fmt.Errorf("failed to write CSV row for %s: %w", r.node.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer flush error: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(doc *Document, rows []tableRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", impactSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, impactSheet, 1, toAny(TableHeader)); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := setRow(f, impactSheet, i+2, r.cells()); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(edgesSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := setRow(f, edgesSheet, 1, toAny(edgeHeader)); err != nil {
		return nil, err
	}
	for i, e := range doc.Edges {
		row := []any{string(e.Source), string(e.Target), e.RelationshipType, e.Confidence}
		if err := setRow(f, edgesSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(impactSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
