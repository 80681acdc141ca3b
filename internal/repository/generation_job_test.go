package repository

import (
	"context"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationJobRepository_Lifecycle(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGenerationJobRepository(db)
	ctx := context.Background()

	user := createProfile(t, db, "maker")
	job := &models.GenerationJob{UserID: user.ID, Kind: models.MediaVideo, Prompt: "waves"}
	require.NoError(t, repo.Create(ctx, job))
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, models.JobPending, job.Status)

	job.Status = models.JobRunning
	job.ProviderJobID = "pred-1"
	require.NoError(t, repo.Save(ctx, job))

	done := &models.GenerationJob{UserID: user.ID, Kind: models.MediaImage, Prompt: "fox", Status: models.JobSucceeded}
	require.NoError(t, repo.Create(ctx, done))

	n, err := repo.CancelActive(ctx, "server restarted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, got.Status)
	assert.Equal(t, "pred-1", got.ProviderJobID)
	assert.NotNil(t, got.CompletedAt)

	list, err := repo.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
