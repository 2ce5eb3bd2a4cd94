package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository/repotest"
	"golang-scheduled-task/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func execution(templateID uint, d int, status model.ExecutionStatus, note string) *model.ScheduledTaskExecution {
	row := &model.ScheduledTaskExecution{
		ScheduledTaskID: templateID,
		ExecutionDate:   day(d),
		ExecutedAt:      day(d).Add(2 * time.Hour),
		Status:          status,
		Trigger:         "scheduled",
	}
	if note != "" {
		row.Note = sql.NullString{String: note, Valid: true}
	}
	return row
}

func TestExecutionRepository_OneSuccessPerDate(t *testing.T) {
	repo := NewExecutionRepository(repotest.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, execution(1, 6, model.ExecutionFailed, "")))
	require.NoError(t, repo.Create(ctx, execution(1, 6, model.ExecutionSuccess, model.NoteScheduled)))
	require.NoError(t, repo.Create(ctx, execution(1, 6, model.ExecutionSkipped, model.NoteIdempotencyConflict)))
	require.NoError(t, repo.Create(ctx, execution(2, 6, model.ExecutionSuccess, model.NoteScheduled)))
	require.NoError(t, repo.Create(ctx, execution(1, 7, model.ExecutionSuccess, model.NoteScheduled)))

	err := repo.Create(ctx, execution(1, 6, model.ExecutionSuccess, model.NoteManual))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	done, err := repo.ExistsSuccess(ctx, 1, day(6))
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.ExistsSuccess(ctx, 1, day(8))
	require.NoError(t, err)
	assert.False(t, done)
}

func TestExecutionRepository_ExistsWithNote(t *testing.T) {
	repo := NewExecutionRepository(repotest.NewDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, execution(1, 6, model.ExecutionSkipped, model.NoteHolidaySkipped)))

	found, err := repo.ExistsWithNote(ctx, 1, day(6), model.ExecutionSkipped, model.NoteHolidaySkipped)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsWithNote(ctx, 1, day(6), model.ExecutionSkipped, model.NoteHolidayMakeupPending)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExecutionRepository_ListByScheduledTask(t *testing.T) {
	repo := NewExecutionRepository(repotest.NewDB(t))
	ctx := context.Background()
	for _, d := range []int{6, 8, 7} {
		require.NoError(t, repo.Create(ctx, execution(1, d, model.ExecutionSuccess, model.NoteScheduled)))
	}
	require.NoError(t, repo.Create(ctx, execution(2, 9, model.ExecutionSuccess, model.NoteScheduled)))

	rows, err := repo.ListByScheduledTask(ctx, model.ListExecutionParam{ScheduledTaskID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-01-08", rows[0].ExecutionDate.Format(time.DateOnly))
	assert.Equal(t, "2025-01-07", rows[1].ExecutionDate.Format(time.DateOnly))
	assert.Equal(t, "2025-01-06", rows[2].ExecutionDate.Format(time.DateOnly))

	rows, err = repo.ListByScheduledTask(ctx, model.ListExecutionParam{ScheduledTaskID: 1, Limit: utils.ToPointer(1)})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecutionRepository_PendingMakeup(t *testing.T) {
	tests := []struct {
		name    string
		rows    []*model.ScheduledTaskExecution
		before  time.Time
		wantDay int
	}{
		{
			name:   "nothing recorded",
			before: day(8),
		},
		{
			name:    "deferred holiday",
			rows:    []*model.ScheduledTaskExecution{execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending)},
			before:  day(8),
			wantDay: 6,
		},
		{
			name:   "not yet on the holiday itself",
			rows:   []*model.ScheduledTaskExecution{execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending)},
			before: day(6),
		},
		{
			name: "consumed by a later success",
			rows: []*model.ScheduledTaskExecution{
				execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending),
				execution(1, 7, model.ExecutionSuccess, model.NoteMakeup),
			},
			before: day(9),
		},
		{
			name: "dropped by policy",
			rows: []*model.ScheduledTaskExecution{
				execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending),
				execution(1, 7, model.ExecutionSkipped, model.NoteMakeupDropped),
			},
			before: day(9),
		},
		{
			name: "a failed makeup attempt keeps it pending",
			rows: []*model.ScheduledTaskExecution{
				execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending),
				execution(1, 7, model.ExecutionFailed, ""),
			},
			before:  day(9),
			wantDay: 6,
		},
		{
			name: "other template's rows are ignored",
			rows: []*model.ScheduledTaskExecution{
				execution(1, 6, model.ExecutionSkipped, model.NoteHolidayMakeupPending),
				execution(2, 7, model.ExecutionSuccess, model.NoteScheduled),
			},
			before:  day(9),
			wantDay: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewExecutionRepository(repotest.NewDB(t))
			ctx := context.Background()
			for _, row := range tt.rows {
				require.NoError(t, repo.Create(ctx, row))
			}

			pending, err := repo.PendingMakeup(ctx, 1, tt.before)
			require.NoError(t, err)
			if tt.wantDay == 0 {
				assert.Nil(t, pending)
				return
			}
			require.NotNil(t, pending)
			assert.Equal(t, day(tt.wantDay).Format(time.DateOnly), pending.ExecutionDate.Format(time.DateOnly))
		})
	}
}
