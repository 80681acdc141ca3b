package testutil

import (
	"context"
	"sync/atomic"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
)

// MediaRepoSpy wraps a MediaRepository and counts mutating calls.
type MediaRepoSpy struct {
	repository.MediaRepository
	DeleteCalls atomic.Int32
	LikeCalls   atomic.Int32
}

func NewMediaRepoSpy(inner repository.MediaRepository) *MediaRepoSpy {
	return &MediaRepoSpy{MediaRepository: inner}
}

func (s *MediaRepoSpy) Delete(ctx context.Context, item models.MediaItem) error {
	s.DeleteCalls.Add(1)
	return s.MediaRepository.Delete(ctx, item)
}

func (s *MediaRepoSpy) ToggleLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint) (models.LikeResult, error) {
	s.LikeCalls.Add(1)
	return s.MediaRepository.ToggleLike(ctx, kind, mediaID, userID)
}

func (s *MediaRepoSpy) SetLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint, liked bool) (models.LikeResult, error) {
	s.LikeCalls.Add(1)
	return s.MediaRepository.SetLike(ctx, kind, mediaID, userID, liked)
}
