package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTables(t *testing.T) {
	page := "Intro paragraph before the grid.\n" +
		"Name\tAge\tCity\n" +
		"Alice\t30\tParis\n" +
		"Bob\t25\tLondon\n" +
		"Closing sentence after the grid."

	tables := DetectTables(page, 3)
	require.Len(t, tables, 1)

	table := tables[0]
	assert.Equal(t, 3, table.PageNumber)
	assert.Equal(t, []string{"Name", "Age", "City"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Alice", "30", "Paris"}, table.Rows[0])
	assert.Equal(t, []string{"Bob", "25", "London"}, table.Rows[1])
}

func TestDetectTablesSpaceSeparated(t *testing.T) {
	page := "Metric  Value\nLatency  12ms\nThroughput  900rps"

	tables := DetectTables(page, 1)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Metric", "Value"}, tables[0].Headers)
	assert.Len(t, tables[0].Rows, 2)
}

func TestDetectTablesRequiresTwoLines(t *testing.T) {
	assert.Empty(t, DetectTables("lonely\theader\tline", 1))
	assert.Empty(t, DetectTables("plain prose with no grid at all", 1))
}

func TestDetectTablesRaggedRows(t *testing.T) {
	page := "A\tB\tC\nonly\ttwo\nw\tx\ty\tz"

	tables := DetectTables(page, 1)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"only", "two", ""}, tables[0].Rows[0])
	assert.Equal(t, []string{"w", "x", "y"}, tables[0].Rows[1])
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders([]string{"", "name", "name", "name"})
	assert.Equal(t, []string{"Column_1", "name", "name_1", "name_2"}, got)

	assert.Equal(t, []string{"a", "b"}, NormalizeHeaders([]string{"a", "b"}))
}

func TestDetectLinks(t *testing.T) {
	page := "See https://example.com/docs. Also https://example.com/docs and #intro here."

	links := DetectLinks(page, 2)
	require.Len(t, links, 2)

	assert.Equal(t, "https://example.com/docs", links[0].URL)
	assert.False(t, links[0].Internal)
	assert.Equal(t, 2, links[0].PageNumber)

	assert.Equal(t, "#intro", links[1].URL)
	assert.True(t, links[1].Internal)
}
