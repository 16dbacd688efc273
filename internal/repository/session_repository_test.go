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

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestSessionRepositoryCreateMaterialized(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO training_sessions").
		WithArgs(sqlmock.AnyArg(), "t1", sqlmock.AnyArg(), "17:30", "19:00", false, nil, false, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO session_groups").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "g1", "Anfänger", 0, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO session_trainers").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "tr1", true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	trainingID := "t1"
	session := &models.TrainingSession{
		TrainingID: &trainingID,
		Date:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime:  "17:30",
		EndTime:    "19:00",
	}
	groupID := "g1"
	groups := []models.SessionGroup{{GroupID: &groupID, Name: "Anfänger"}}
	trainers := map[int][]models.SessionTrainer{0: {{TrainerID: "tr1", IsPrimary: true}}}

	inserted, err := repo.CreateMaterialized(context.Background(), session, groups, trainers)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, session.ID, groups[0].SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateMaterializedAlreadyExists(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	trainingID := "t1"
	session := &models.TrainingSession{
		TrainingID: &trainingID,
		Date:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime:  "17:30",
		EndTime:    "19:00",
	}
	groupID := "g1"
	groups := []models.SessionGroup{{GroupID: &groupID, Name: "Anfänger"}}

	inserted, err := repo.CreateMaterialized(context.Background(), session, groups, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryExistingDates(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 28)
	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(from).
		AddRow(from.AddDate(0, 0, 7))
	mock.ExpectQuery("SELECT date FROM training_sessions").
		WithArgs("t1", from, to).
		WillReturnRows(rows)

	dates, err := repo.ExistingDates(context.Background(), "t1", from, to)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, from, dates[0])
}

func TestSessionRepositorySetCancelled(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	reason := "Halle gesperrt"
	mock.ExpectExec("UPDATE training_sessions SET cancelled").
		WithArgs(true, &reason, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetCancelled(context.Background(), "s1", true, &reason))
	assert.NoError(t, mock.ExpectationsWereMet())
}
