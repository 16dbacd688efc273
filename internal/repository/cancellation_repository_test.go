package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
)

func newCancellationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestCancellationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectExec("INSERT INTO cancellations").
		WithArgs(sqlmock.AnyArg(), "s1", "p1", "Verletzung im Training", models.LifecycleActive, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := &models.Cancellation{SessionID: "s1", PersonID: "p1", Reason: "Verletzung im Training"}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.LifecycleActive, c.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationRepositoryFindActiveMiss(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM cancellations").
		WithArgs("s1", "p1", models.LifecycleActive).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := repo.FindActive(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCancellationRepositoryUpdateReasonGuard(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectExec("UPDATE cancellations SET reason").
		WithArgs("Neuer Grund nach Rücksprache", sqlmock.AnyArg(), "c1", models.LifecycleActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateReason(context.Background(), "c1", "Neuer Grund nach Rücksprache")
	require.ErrorIs(t, err, ErrNoRowsUpdated)
}

func TestCancellationRepositoryUndoGuard(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	mock.ExpectExec("UPDATE cancellations SET state").
		WithArgs(models.LifecycleRetired, sqlmock.AnyArg(), sqlmock.AnyArg(), "c1", models.LifecycleActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Undo(context.Background(), "c1")
	require.ErrorIs(t, err, ErrNoRowsUpdated)
}

func TestCancellationRepositoryList(t *testing.T) {
	db, mock, cleanup := newCancellationRepoMock(t)
	defer cleanup()

	repo := NewCancellationRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "person_id", "reason", "state", "undone_at", "created_at", "updated_at"}).
		AddRow("c1", "s1", "p1", "Verletzung im Training", "ACTIVE", nil, now, now)
	mock.ExpectQuery("SELECT c.id, c.session_id").
		WithArgs("p1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	result, total, err := repo.List(context.Background(), models.CancellationFilter{PersonID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, result, 1)
	assert.Equal(t, "s1", result[0].SessionID)
}
