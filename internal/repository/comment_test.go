package repository

import (
	"context"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateListDelete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := createProfile(t, db, "author")
	img := &models.Image{UserID: author.ID, Title: "t", ImageURL: "u"}
	require.NoError(t, db.Create(img).Error)

	first := &models.ImageComment{ImageID: img.ID, UserID: author.ID, Content: "first"}
	second := &models.ImageComment{ImageID: img.ID, UserID: author.ID, Content: "second"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NotNil(t, first.Author)
	assert.Equal(t, "author", first.Author.Username)

	list, err := repo.ListByImage(ctx, img.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.True(t, models.HasCode(repo.Delete(ctx, first.ID), models.CodeNotFound))
}
