package service

import (
	"context"
	"testing"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/repository/repotest"
	"golang-scheduled-task/pkg/logger"
	"golang-scheduled-task/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMaterializer_DueAtAcrossDST(t *testing.T) {
	newYork := utils.MustLoadLocation("America/New_York")

	tests := []struct {
		name     string
		date     time.Time
		dueDays  int
		dueHours int
		want     time.Time
	}{
		{
			name: "spring forward", date: date(2025, 3, 8), dueDays: 1, dueHours: 23,
			want: time.Date(2025, 3, 9, 23, 0, 0, 0, newYork),
		},
		{
			name: "fall back", date: date(2025, 11, 1), dueDays: 1, dueHours: 0,
			want: time.Date(2025, 11, 2, 0, 0, 0, 0, newYork),
		},
		{
			name: "fall back end of day", date: date(2025, 11, 2), dueDays: 0, dueHours: 23,
			want: time.Date(2025, 11, 2, 23, 0, 0, 0, newYork),
		},
		{
			name: "several days over the change", date: date(2025, 3, 7), dueDays: 3, dueHours: 9,
			want: time.Date(2025, 3, 10, 9, 0, 0, 0, newYork),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := repotest.NewDB(t)
			tasks := repository.NewTaskRepository(db)
			m := NewTaskMaterializer(logger.NewNop(), newYork, tasks)
			tpl := &model.ScheduledTask{GroupID: 1, Title: "Take out the bins", DueDays: tt.dueDays, DueHours: tt.dueHours}
			tpl.ID = 3

			result, err := m.Materialize(context.Background(), tpl, tt.date)
			require.NoError(t, err)
			assert.True(t, result.DueAt.Equal(tt.want), "due_at %s, want %s", result.DueAt, tt.want)
			assert.Equal(t, tt.want.Day(), result.DueAt.In(newYork).Day())
			assert.Equal(t, tt.dueHours, result.DueAt.In(newYork).Hour())

			var stored model.Task
			require.NoError(t, db.First(&stored, result.CreatedTaskID).Error)
			assert.True(t, stored.DueAt.Equal(tt.want), "stored due_at %s", stored.DueAt)
		})
	}
}
