package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hericlibong/Infograph2Data/internal/entity"
)

func sampleDataset() *entity.Dataset {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r1 := entity.NewRow(1)
	r1.Set("A", "a1")
	r1.Set("B", "b1")
	r2 := entity.NewRow(2)
	r2.Set("A", "a2")
	r2.Set("B", "b2")
	return &entity.Dataset{
		ID:        "ds-test",
		Columns:   []string{"A", "B"},
		Rows:      []entity.Row{r1, r2},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestApply_AddColumn(t *testing.T) {
	ds := sampleDataset()
	before := ds.UpdatedAt
	now := before.Add(time.Minute)
	cols := []string{"A", "B", "C"}

	changes := Apply(ds, entity.DatasetUpdate{Columns: &cols}, now)

	require.NotNil(t, changes)
	assert.Equal(t, []string{"C"}, changes["columns_added"])
	assert.Equal(t, []string{}, changes["columns_removed"])
	assert.Equal(t, []string{"A", "B", "C"}, ds.Columns)
	assert.True(t, ds.UpdatedAt.After(before))

	require.Len(t, ds.EditHistory, 1)
	entry := ds.EditHistory[0]
	assert.Equal(t, entity.ActionUpdate, entry.Action)
	assert.Equal(t, now, entry.Timestamp)
}

func TestApply_RenameColumnIsAddPlusRemove(t *testing.T) {
	ds := sampleDataset()
	cols := []string{"A", "Renamed"}

	changes := Apply(ds, entity.DatasetUpdate{Columns: &cols}, time.Now().UTC())

	assert.Equal(t, []string{"Renamed"}, changes["columns_added"])
	assert.Equal(t, []string{"B"}, changes["columns_removed"])
}

func TestApply_ReplaceRows(t *testing.T) {
	ds := sampleDataset()
	r2 := entity.NewRow(2)
	r2.Set("A", "changed")
	r3 := entity.NewRow(3)
	r3.Set("A", "new")
	rows := []entity.Row{r2, r3}

	changes := Apply(ds, entity.DatasetUpdate{Rows: &rows}, time.Now().UTC())

	require.NotNil(t, changes)
	assert.Equal(t, 1, changes["rows_added"])   // row 3
	assert.Equal(t, 1, changes["rows_removed"]) // row 1
	// rows_modified is the size of the replacement payload, not a real diff.
	assert.Equal(t, 2, changes["rows_modified"])
	assert.Equal(t, rows, ds.Rows)
}

func TestApply_EmptyUpdateIsNoOp(t *testing.T) {
	ds := sampleDataset()
	before := ds.UpdatedAt

	changes := Apply(ds, entity.DatasetUpdate{}, before.Add(time.Hour))

	assert.Nil(t, changes)
	assert.Equal(t, before, ds.UpdatedAt)
	assert.Empty(t, ds.EditHistory)
}

func TestApply_HistoryIsAppendOnly(t *testing.T) {
	ds := sampleDataset()

	cols1 := []string{"A", "B", "C"}
	Apply(ds, entity.DatasetUpdate{Columns: &cols1}, time.Now().UTC())
	first := ds.EditHistory[0]

	cols2 := []string{"A"}
	Apply(ds, entity.DatasetUpdate{Columns: &cols2}, time.Now().UTC())

	require.Len(t, ds.EditHistory, 2)
	assert.Equal(t, first, ds.EditHistory[0])
}

func TestApply_ColumnsAndRowsTogetherSingleEntry(t *testing.T) {
	ds := sampleDataset()
	cols := []string{"A"}
	rows := []entity.Row{entity.NewRow(1)}

	changes := Apply(ds, entity.DatasetUpdate{Columns: &cols, Rows: &rows}, time.Now().UTC())

	require.Len(t, ds.EditHistory, 1)
	assert.Contains(t, changes, "columns_removed")
	assert.Contains(t, changes, "rows_modified")
}

func TestApply_ExplicitEmptyRowsReplacement(t *testing.T) {
	ds := sampleDataset()
	rows := []entity.Row{}

	changes := Apply(ds, entity.DatasetUpdate{Rows: &rows}, time.Now().UTC())

	require.NotNil(t, changes)
	assert.Equal(t, 0, changes["rows_added"])
	assert.Equal(t, 2, changes["rows_removed"])
	assert.Equal(t, 0, changes["rows_modified"])
	assert.Empty(t, ds.Rows)
}
