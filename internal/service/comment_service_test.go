package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateProfile(t, f.db, "owner", false)
	commenter := testutil.CreateProfile(t, f.db, "commenter", false)
	stranger := testutil.CreateProfile(t, f.db, "stranger", false)
	img := uploadImage(t, f, owner, "Discuss me")
	svc := NewCommentService(f.comments, f.mediaRepo, f.events, f.isAdmin)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, img.ID, "hello")
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	_, err = svc.Create(ctx, sessionFor(commenter), img.ID, "   ")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = svc.Create(ctx, sessionFor(commenter), img.ID+50, "lost")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	first, err := svc.Create(ctx, sessionFor(commenter), img.ID, "  first!  ")
	require.NoError(t, err)
	assert.Equal(t, "first!", first.Content)
	require.NotNil(t, first.Author)
	assert.Equal(t, "commenter", first.Author.Username)

	second, err := svc.Create(ctx, sessionFor(owner), img.ID, "thanks")
	require.NoError(t, err)

	list, err := svc.List(ctx, img.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	err = svc.Delete(ctx, sessionFor(stranger), img.ID, first.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = svc.Delete(ctx, sessionFor(commenter), img.ID+1, first.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	require.NoError(t, svc.Delete(ctx, sessionFor(commenter), img.ID, first.ID))

	list, err = svc.List(ctx, img.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, []string{
		notifications.EventMediaCreated,
		notifications.EventCommentCreated,
		notifications.EventCommentCreated,
		notifications.EventCommentDeleted,
	}, f.events.ChangeTypes())
}

func TestCommentService_AdminMayDeleteAnyComment(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateProfile(t, f.db, "owner", false)
	admin := testutil.CreateProfile(t, f.db, "moderator", true)
	img := uploadImage(t, f, owner, "Heated")
	svc := NewCommentService(f.comments, f.mediaRepo, f.events, f.isAdmin)
	ctx := context.Background()

	c, err := svc.Create(ctx, sessionFor(owner), img.ID, "spicy take")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, sessionFor(admin), img.ID, c.ID))
}
