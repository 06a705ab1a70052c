package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// columnAlignment picks how a column's cells line up. Timing output mixes
// identifiers and counters with wall-clock strings, so callers mark which
// columns read as numbers.
type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable lays out rows under headers with per-column alignment. Numeric
// columns keep their header flush right as well, so pass IDs, transponders,
// and counters line up with their digits. Short rows pad out with empty
// cells.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}

	alignFor := func(i int) text.Align {
		if i < len(aligns) && aligns[i] == alignRight {
			return text.AlignRight
		}
		return text.AlignLeft
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, name := range headers {
		header[i] = name
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       alignFor(i),
			AlignHeader: alignFor(i),
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			} else {
				cells[i] = ""
			}
		}
		tw.AppendRow(cells)
	}

	return tw.Render()
}
