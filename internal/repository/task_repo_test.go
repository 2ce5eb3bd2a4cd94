package repository

import (
	"context"
	"testing"
	"time"

	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository/repotest"
	"golang-scheduled-task/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepository_DeleteIncomplete(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	attrs := model.TaskAttributes{GroupID: 1, ScheduledTaskID: 5, Title: "Sweep", DueAt: time.Now().UTC()}

	first, err := repo.Create(ctx, attrs)
	require.NoError(t, err)
	second, err := repo.Create(ctx, attrs)
	require.NoError(t, err)

	latest, err := repo.FindLatestIncomplete(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)

	require.NoError(t, db.Model(&model.Task{}).Where("id = ?", second).Update("status", model.TaskApproved).Error)

	latest, err = repo.FindLatestIncomplete(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, first, latest.ID)

	deleted, err := repo.DeleteIncomplete(ctx, second)
	require.NoError(t, err)
	assert.False(t, deleted, "approved task must survive")

	deleted, err = repo.DeleteIncomplete(ctx, first)
	require.NoError(t, err)
	assert.True(t, deleted)

	latest, err = repo.FindLatestIncomplete(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, latest)

	kept, err := repo.FindByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, model.TaskApproved, kept.Status)
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewTaskRepository(db)
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	err := uow.Run(ctx, func(opts ...utils.DBOption) error {
		if _, err := repo.Create(ctx, model.TaskAttributes{GroupID: 1, ScheduledTaskID: 9, Title: "Dust", DueAt: time.Now().UTC()}, opts...); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&model.Task{}).Count(&count).Error)
	assert.Zero(t, count)

	err = uow.Run(ctx, func(opts ...utils.DBOption) error {
		_, err := repo.Create(ctx, model.TaskAttributes{GroupID: 1, ScheduledTaskID: 9, Title: "Dust", DueAt: time.Now().UTC()}, opts...)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Task{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
