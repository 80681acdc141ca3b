package service

import (
	"context"
	"testing"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/testutil"

	"gorm.io/gorm"
)

// fixture wires the services against an in-memory database and store.
type fixture struct {
	db        *gorm.DB
	store     *testutil.MemStore
	events    *testutil.EventRecorder
	profiles  repository.ProfileRepository
	mediaRepo *testutil.MediaRepoSpy
	comments  repository.CommentRepository
	media     *MediaService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SQLiteDB(t)
	store := testutil.NewMemStore()
	events := &testutil.EventRecorder{}
	profiles := repository.NewProfileRepository(db)
	mediaRepo := testutil.NewMediaRepoSpy(repository.NewMediaRepository(db, store))
	f := &fixture{
		db:        db,
		store:     store,
		events:    events,
		profiles:  profiles,
		mediaRepo: mediaRepo,
		comments:  repository.NewCommentRepository(db),
	}
	f.media = NewMediaService(MediaServiceDeps{
		Repo:    mediaRepo,
		Store:   store,
		Fetcher: storage.NewFetcher(10*time.Second, 50<<20, storage.AllowPrivateNetworks()),
		Events:  events,
		IsAdmin: f.isAdmin,
	})
	return f
}

func (f *fixture) isAdmin(ctx context.Context, userID uint) (bool, error) {
	p, err := f.profiles.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}

func sessionFor(p *models.Profile) *auth.Session {
	return &auth.Session{UserID: p.ID, Username: p.Username, Email: p.Email}
}

func statusOf(err error) int {
	return models.StatusForError(err)
}
