package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable_TabDelimited(t *testing.T) {
	columns, rows := ParseTable("Name\tAge\tCity\nAlice\t30\tNYC\nBob\t25\tLA")

	assert.Equal(t, []string{"Name", "Age", "City"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, "Alice", rows[0].Get("Name"))
	assert.Equal(t, "30", rows[0].Get("Age"))
	assert.Equal(t, "NYC", rows[0].Get("City"))
	assert.Equal(t, 2, rows[1].ID)
	assert.Equal(t, "Bob", rows[1].Get("Name"))
}

func TestParseTable_PipeDelimited(t *testing.T) {
	columns, rows := ParseTable("| Name | Age |\n| Alice | 30 |\n| Bob | 25 |")

	// Leading/trailing pipes produce empty edge cells which become
	// synthetic column names.
	assert.Equal(t, []string{"Column_1", "Name", "Age", "Column_4"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].Get("Name"))
	assert.Equal(t, "25", rows[1].Get("Age"))
}

func TestParseTable_TabWinsOverPipe(t *testing.T) {
	// Both a tab-consistent and a pipe-consistent reading are possible; the
	// tab scheme has priority.
	columns, rows := ParseTable("a|x\tb|y\tc\n1|2\t3|4\t5")

	assert.Equal(t, []string{"a|x", "b|y", "c"}, columns)
	require.Len(t, rows, 1)
	assert.Equal(t, "1|2", rows[0].Get("a|x"))
}

func TestParseTable_MultiSpaceWithHeader(t *testing.T) {
	columns, rows := ParseTable("Name  Age  City\nAlice  30  NYC\nBob  25  LA")

	assert.Equal(t, []string{"Name", "Age", "City"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "NYC", rows[0].Get("City"))
}

func TestParseTable_MultiSpaceNumericFirstLine(t *testing.T) {
	// First line starts with digits: stays data, synthetic headers kept.
	columns, rows := ParseTable("1  2  3\n4  5  6")

	assert.Equal(t, []string{"Column_1", "Column_2", "Column_3"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].Get("Column_1"))
	assert.Equal(t, "6", rows[1].Get("Column_3"))
}

func TestParseTable_RaggedRowRepair(t *testing.T) {
	// The second data row is one token short; it must be padded, not
	// dropped.
	columns, rows := ParseTable("Name  Age  City\nAlice  30  NYC\nBob  25")

	assert.Equal(t, []string{"Name", "Age", "City"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[1].Get("Name"))
	assert.Equal(t, "25", rows[1].Get("Age"))
	assert.Equal(t, "", rows[1].Get("City"))
}

func TestParseTable_KeyValue(t *testing.T) {
	columns, rows := ParseTable("Name: Alice\nAge: 30")

	assert.Equal(t, []string{"Key", "Value"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, "Name", rows[0].Get("Key"))
	assert.Equal(t, "Alice", rows[0].Get("Value"))
	assert.Equal(t, 2, rows[1].ID)
	assert.Equal(t, "Age", rows[1].Get("Key"))
	assert.Equal(t, "30", rows[1].Get("Value"))
}

func TestParseTable_KeyValueDropsNonMatching(t *testing.T) {
	columns, rows := ParseTable("Invoice Summary\nName: Alice\nAge: 30")

	assert.Equal(t, []string{"Key", "Value"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0].Get("Key"))
}

func TestParseTable_SingleKeyValueFallsThrough(t *testing.T) {
	// A lone "Label: Value" line is not enough for the key-value scheme.
	columns, rows := ParseTable("Name: Alice")

	assert.Equal(t, []string{"Text"}, columns)
	require.Len(t, rows, 1)
	assert.Equal(t, "Name: Alice", rows[0].Get("Text"))
}

func TestParseTable_Fallback(t *testing.T) {
	columns, rows := ParseTable("just a paragraph\nanother sentence here")

	assert.Equal(t, []string{"Text"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, "just a paragraph", rows[0].Get("Text"))
	assert.Equal(t, 2, rows[1].ID)
}

func TestParseTable_EmptyInput(t *testing.T) {
	columns, rows := ParseTable("")
	assert.Empty(t, columns)
	assert.Empty(t, rows)

	columns, rows = ParseTable("   \n\t\n  ")
	assert.Empty(t, columns)
	assert.Empty(t, rows)
}

func TestParseTable_BlankDelimitedHeaderSynthesized(t *testing.T) {
	columns, _ := ParseTable("Name\t\tCity\nAlice\t30\tNYC\nBob\t25\tLA")

	assert.Equal(t, []string{"Name", "Column_2", "City"}, columns)
}

func TestParseTable_DelimitedRowCount(t *testing.T) {
	// Delimited schemes consume one line as the header.
	_, rows := ParseTable("A\tB\n1\t2\n3\t4\n5\t6")
	assert.Len(t, rows, 3)
}

func TestParseTable_Idempotent(t *testing.T) {
	input := "Name  Age\nAlice  30\nBob  25"

	c1, r1 := ParseTable(input)
	c2, r2 := ParseTable(input)

	assert.Equal(t, c1, c2)
	assert.Equal(t, r1, r2)
}
