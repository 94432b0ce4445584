package exec

import (
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/internal/builder"
	"github.com/quarrydata/quarry/internal/infer"
)

// Unstack turns the long group-by half of a pivot_wider into its wide
// form. The compiled statement already grouped by row and column
// dimensions; this step spreads each distinct column-dimension value into
// its own output column, carrying the aggregated values across.
//
// Row and column order both follow first appearance in the long result,
// so the wide output is deterministic for a deterministic statement.
func Unstack(res *Result, spec *builder.PivotSpec) *Result {
	rowIdx := columnIndexes(res.Columns, spec.Rows)
	colIdx := columnIndexes(res.Columns, spec.Columns)
	valIdx := columnIndexes(res.Columns, spec.Values)
	if len(colIdx) == 0 || len(valIdx) == 0 {
		return res
	}

	type wideRow struct {
		key   []any
		cells map[string]any
	}
	var (
		rowOrder []*wideRow
		rowByKey = map[string]*wideRow{}
		colOrder []string
		colSeen  = map[string]bool{}
	)

	for _, row := range res.Rows {
		key := pickCells(row, rowIdx)
		keyStr := joinKey(key)
		wr, ok := rowByKey[keyStr]
		if !ok {
			wr = &wideRow{key: key, cells: map[string]any{}}
			rowByKey[keyStr] = wr
			rowOrder = append(rowOrder, wr)
		}
		header := joinKey(pickCells(row, colIdx))
		for _, idx := range valIdx {
			label := header
			if len(valIdx) > 1 {
				label = header + " " + res.Columns[idx].Label
			}
			if !colSeen[label] {
				colSeen[label] = true
				colOrder = append(colOrder, label)
			}
			wr.cells[label] = row[idx]
		}
	}

	cols := make([]builder.ResultColumn, 0, len(rowIdx)+len(colOrder))
	for _, idx := range rowIdx {
		cols = append(cols, res.Columns[idx])
	}
	valueType := res.Columns[valIdx[0]].Type
	for _, label := range colOrder {
		cols = append(cols, builder.ResultColumn{Label: label, Type: valueType})
	}

	rows := make([][]any, 0, len(rowOrder))
	for _, wr := range rowOrder {
		row := make([]any, 0, len(cols))
		row = append(row, wr.key...)
		for _, label := range colOrder {
			row = append(row, wr.cells[label])
		}
		rows = append(rows, row)
	}

	return &Result{RunID: res.RunID, Columns: cols, Rows: rows, TimeTaken: res.TimeTaken}
}

// Unpivot melts every column after the first into (column, value) pairs,
// keyed by the first column. A result with fewer than two columns is
// returned unchanged.
func Unpivot(res *Result) *Result {
	if len(res.Columns) < 2 {
		return res
	}
	cols := []builder.ResultColumn{
		res.Columns[0],
		{Label: "column", Type: infer.TypeString},
		{Label: "value", Type: infer.TypeString},
	}
	var rows [][]any
	for _, row := range res.Rows {
		for i := 1; i < len(res.Columns); i++ {
			rows = append(rows, []any{row[0], res.Columns[i].Label, row[i]})
		}
	}
	return &Result{RunID: res.RunID, Columns: cols, Rows: rows, TimeTaken: res.TimeTaken}
}

// Transpose flips rows and columns. The first column's values become the
// output headers; each remaining input column becomes one output row led
// by its label.
func Transpose(res *Result) *Result {
	if len(res.Columns) < 1 {
		return res
	}
	cols := []builder.ResultColumn{{Label: res.Columns[0].Label, Type: infer.TypeString}}
	for _, row := range res.Rows {
		cols = append(cols, builder.ResultColumn{Label: cellString(row[0]), Type: infer.TypeString})
	}
	var rows [][]any
	for i := 1; i < len(res.Columns); i++ {
		row := make([]any, 0, len(cols))
		row = append(row, res.Columns[i].Label)
		for _, src := range res.Rows {
			row = append(row, src[i])
		}
		rows = append(rows, row)
	}
	return &Result{RunID: res.RunID, Columns: cols, Rows: rows, TimeTaken: res.TimeTaken}
}

func columnIndexes(cols []builder.ResultColumn, labels []string) []int {
	var out []int
	for _, label := range labels {
		for i, c := range cols {
			if c.Label == label {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func pickCells(row []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = row[j]
	}
	return out
}

func joinKey(cells []any) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = cellString(c)
	}
	return strings.Join(parts, " ")
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
