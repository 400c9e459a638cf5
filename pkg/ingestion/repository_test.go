package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupRunRepo(t *testing.T) (sqlmock.Sqlmock, *RunRepository) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return mock, NewRunRepository(db)
}

func TestRunRepositoryCreate(t *testing.T) {
	mock, repo := setupRunRepo(t)
	mock.ExpectExec(`INSERT INTO "ingestion_runs"`).WillReturnResult(sqlmock.NewResult(0, 1))

	run := &Run{ID: "run-1", Kind: "patients", Status: StatusRunning}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFinish(t *testing.T) {
	mock, repo := setupRunRepo(t)
	mock.ExpectExec(`UPDATE "ingestion_runs" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	run := &Run{ID: "run-1", Status: StatusFailed, Error: "row 3: boom"}
	require.NoError(t, repo.Finish(context.Background(), run))
	require.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryGetNotFound(t *testing.T) {
	mock, repo := setupRunRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "ingestion_runs" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryCleanup(t *testing.T) {
	mock, repo := setupRunRepo(t)
	mock.ExpectExec(`DELETE FROM "ingestion_runs" WHERE started_at < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.CleanupBefore(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
