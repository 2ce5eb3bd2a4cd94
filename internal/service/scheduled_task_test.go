package service

import (
	"context"
	"errors"
	"testing"

	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/repository/repotest"
	"golang-scheduled-task/internal/schedule"
	"golang-scheduled-task/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() dto.ScheduledTaskInput {
	return dto.ScheduledTaskInput{
		GroupID:   3,
		Title:     "Take out the trash",
		StartDate: "2025-01-01",
		DueHours:  4,
		Schedules: []dto.ScheduleInput{
			{Frequency: "weekly", Time: "07:05", Weekdays: []string{"monday", "thu"}},
		},
	}
}

func TestScheduledTaskService_Validate(t *testing.T) {
	svc := NewScheduledTaskService(logger.NewNop(), goValidator.New(), nil)

	tests := []struct {
		name      string
		mutate    func(in *dto.ScheduledTaskInput)
		wantField string
	}{
		{name: "valid", mutate: func(in *dto.ScheduledTaskInput) {}},
		{name: "missing title", mutate: func(in *dto.ScheduledTaskInput) { in.Title = "" }, wantField: "title"},
		{name: "missing group", mutate: func(in *dto.ScheduledTaskInput) { in.GroupID = 0 }, wantField: "group_id"},
		{name: "no schedules", mutate: func(in *dto.ScheduledTaskInput) { in.Schedules = nil }, wantField: "schedules"},
		{name: "bad start date", mutate: func(in *dto.ScheduledTaskInput) { in.StartDate = "01/01/2025" }, wantField: "start_date"},
		{name: "end before start", mutate: func(in *dto.ScheduledTaskInput) { in.EndDate = "2024-12-31" }, wantField: "end_date"},
		{name: "due hours out of range", mutate: func(in *dto.ScheduledTaskInput) { in.DueHours = 24 }, wantField: "due_hours"},
		{name: "negative reward", mutate: func(in *dto.ScheduledTaskInput) { in.Reward = -1 }, wantField: "reward"},
		{
			name:      "unknown frequency",
			mutate:    func(in *dto.ScheduledTaskInput) { in.Schedules[0].Frequency = "yearly" },
			wantField: "schedules[0].frequency",
		},
		{
			name:      "time out of range",
			mutate:    func(in *dto.ScheduledTaskInput) { in.Schedules[0].Time = "24:00" },
			wantField: "schedules[0].time",
		},
		{
			name:      "weekly without days",
			mutate:    func(in *dto.ScheduledTaskInput) { in.Schedules[0].Weekdays = nil },
			wantField: "schedules[0]",
		},
		{
			name: "monthly date out of range",
			mutate: func(in *dto.ScheduledTaskInput) {
				in.Schedules[0] = dto.ScheduleInput{Frequency: "monthly", Time: "09:00", MonthDays: []int{32}}
			},
			wantField: "schedules[0]",
		},
		{
			name:      "makeup without skipping holidays",
			mutate:    func(in *dto.ScheduledTaskInput) { in.ExecuteOnNextBusinessDay = true },
			wantField: "execute_on_next_business_day",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			task, err := svc.Validate(context.Background(), in)
			if tt.wantField == "" {
				require.NoError(t, err)
				require.Len(t, task.Rules, 1)
				assert.True(t, task.IsActive)
				assert.True(t, task.IsUnassigned())
				return
			}

			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestScheduledTaskService_Create(t *testing.T) {
	db := repotest.NewDB(t)
	repo := repository.NewScheduledTaskRepository(db)
	svc := NewScheduledTaskService(logger.NewNop(), goValidator.New(), repo)
	ctx := context.Background()

	in := validInput()
	inactive := false
	in.IsActive = &inactive
	userID := int64(42)
	in.AssignedUserID = &userID
	in.Tags = []string{"chore"}

	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, int64(42), stored.AssignedUserID.Int64)
	assert.Equal(t, []string{"chore"}, stored.TagList())
	require.Len(t, stored.Schedules, 1)
	require.NoError(t, stored.RulesErr)
	assert.Equal(t, "weekly mon,thu 07:05", schedule.Describe(stored.Rules[0]))

	_, err = svc.Create(ctx, dto.ScheduledTaskInput{Title: "broken"})
	var verr *model.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestValidateCronSpec(t *testing.T) {
	assert.NoError(t, ValidateCronSpec("0 * * * *"))
	assert.NoError(t, ValidateCronSpec("@hourly"))
	assert.Error(t, ValidateCronSpec("every hour"))
	assert.Error(t, ValidateCronSpec("0 * * *"))
}

func TestParseMakeupPolicy(t *testing.T) {
	p, err := ParseMakeupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MakeupNextBusinessDay, p)

	p, err = ParseMakeupPolicy("Lookahead")
	require.NoError(t, err)
	assert.Equal(t, MakeupWithinLookahead, p)
	assert.Equal(t, "lookahead", p.String())

	_, err = ParseMakeupPolicy("never")
	assert.Error(t, err)
}
