package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Table is a header/row grid found on a page. Headers are unique and every
// row has exactly len(Headers) cells.
type Table struct {
	PageNumber int
	Headers    []string
	Rows       [][]string
}

var cellSep = regexp.MustCompile(`\t+| {2,}`)

// DetectTables finds simple grid tables in page text: two or more consecutive
// lines that each split into at least two cells. The first line of a grid is
// taken as the header row.
func DetectTables(pageText string, pageNumber int) []Table {
	var tables []Table
	var grid [][]string

	flush := func() {
		if len(grid) >= 2 {
			headers := NormalizeHeaders(grid[0])
			rows := make([][]string, 0, len(grid)-1)
			for _, r := range grid[1:] {
				rows = append(rows, NormalizeRow(r, len(headers)))
			}
			tables = append(tables, Table{PageNumber: pageNumber, Headers: headers, Rows: rows})
		}
		grid = nil
	}

	for _, line := range strings.Split(pageText, "\n") {
		cells := splitCells(line)
		if len(cells) >= 2 {
			grid = append(grid, cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

func splitCells(line string) []string {
	var cells []string
	for _, c := range cellSep.Split(strings.TrimSpace(line), -1) {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

// NormalizeHeaders resolves header collisions: blank headers become Column_N
// (1-based position) and duplicates get a numeric suffix, so the result is
// all-unique.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	next := make(map[string]int)

	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		base := name
		for used[name] {
			next[base]++
			name = fmt.Sprintf("%s_%d", base, next[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// NormalizeRow pads or truncates a row to exactly width cells.
func NormalizeRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
