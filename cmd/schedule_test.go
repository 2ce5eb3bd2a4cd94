package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang-scheduled-task/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduled_tasks:
  - group_id: 7
    title: Water plants
    assigned_user_id: 42
    is_active: false
    start_date: "2025-02-01"
    skip_holidays: true
    schedules:
      - frequency: weekly
        time: "07:30"
        weekdays: [mon, fri]
  - group_id: 7
    title: Rent
    start_date: "2025-01-01"
    schedules:
      - frequency: monthly
        time: "09:00"
        month_days: [31]
`), 0o600))

	inputs, err := readTemplates(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	first := inputs[0]
	assert.Equal(t, uint(7), first.GroupID)
	require.NotNil(t, first.AssignedUserID)
	assert.Equal(t, int64(42), *first.AssignedUserID)
	require.NotNil(t, first.IsActive)
	assert.False(t, *first.IsActive)
	assert.True(t, first.SkipHolidays)
	require.Len(t, first.Schedules, 1)
	assert.Equal(t, []string{"mon", "fri"}, first.Schedules[0].Weekdays)

	second := inputs[1]
	assert.Nil(t, second.AssignedUserID)
	assert.Equal(t, []int{31}, second.Schedules[0].MonthDays)

	task, err := second.ToModel()
	require.NoError(t, err)
	assert.True(t, task.IsActive)
	assert.True(t, task.IsUnassigned())
}

func TestReadTemplates_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("other: 1\n"), 0o600))

	_, err := readTemplates(path)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint
		wantErr bool
	}{
		{raw: "12", want: 12},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	printOutcomes(&buf, []dto.ExecutionOutcome{
		{ScheduledTaskID: 3, Date: "2025-01-06", Kind: dto.OutcomeSuccess, Note: "scheduled", CreatedTaskID: 11},
		{ScheduledTaskID: 4, Date: "2025-01-06", Kind: dto.OutcomeFailed, Error: "boom"},
	})

	out := buf.String()
	assert.Contains(t, out, "TEMPLATE")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "boom")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}
