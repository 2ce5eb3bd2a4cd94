// Package repotest opens throwaway databases for repository and service tests.
package repotest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang-scheduled-task/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns an in-memory SQLite database with the engine's schema,
// including the partial unique index on successful executions.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repotest_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.ScheduledTask{},
		&model.ScheduledTaskSchedule{},
		&model.ScheduledTaskExecution{},
		&model.Task{},
		&model.Holiday{},
	))
	require.NoError(t, db.Exec(model.SuccessUniqueIndexDDL).Error)
	return db
}
