package task

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportWorkbook(t *testing.T) {
	due := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	items := []*Task{
		{Description: "Review labs", Department: "Lab", Patient: "Jane Doe", Status: StatusPending,
			Actions: []string{ActionClaim, ActionComplete}, DueDate: &due, CreatedAt: due},
		{Description: "Call insurer", Department: "Billing", Patient: "John Roe", Status: StatusDone,
			Actions: []string{ActionClaimed}, DocumentID: strPtr("doc-1"), CreatedAt: due},
	}

	data, err := ExportWorkbook(items)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{exportSheet}, f.GetSheetList())

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1+len(items))

	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "Review labs", rows[1][0])
	assert.Equal(t, "Claim, Complete", rows[1][4])
	assert.Equal(t, "2026-04-02", rows[1][5])
	assert.Equal(t, "doc-1", rows[2][6])
}

func TestExportWorkbook_Empty(t *testing.T) {
	data, err := ExportWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
