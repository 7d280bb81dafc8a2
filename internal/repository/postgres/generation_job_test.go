package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
)

func TestUpdateProgressSkipsTerminalJobs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()

	// zero rows affected means the guard filtered a terminal job
	mock.ExpectExec("UPDATE generation_jobs").
		WithArgs(jobID, generation.StatusInProgress, generation.StepCopywriting, []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProgress(context.Background(), jobID, generation.StatusInProgress, generation.StepCopywriting, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrJobTerminal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressOverwritesSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()

	mock.ExpectExec("UPDATE generation_jobs").
		WithArgs(jobID, generation.StatusInProgress, generation.StepAnalysis, []byte(`{"step":"analysis"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProgress(context.Background(), jobID, generation.StatusInProgress, generation.StepAnalysis, []byte(`{"step":"analysis"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTotalsIncrementsInPlace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()

	mock.ExpectExec("UPDATE generation_jobs").
		WithArgs(jobID, int64(1500), 0.0125, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddTotals(context.Background(), jobID, 1500, 0.0125, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteGuardsTerminalState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE generation_jobs").
		WithArgs(jobID, []byte(`[]`), []byte(`{}`), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), jobID, []byte(`[]`), []byte(`{}`), at)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrJobTerminal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailStoresMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE generation_jobs").
		WithArgs(jobID, "provider unavailable", []byte(`{}`), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Fail(context.Background(), jobID, "provider unavailable", []byte(`{}`), at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMapsMissingJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGenerationJobRepository(db)
	jobID := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM generation_jobs").
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), jobID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
