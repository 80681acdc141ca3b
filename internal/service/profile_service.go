package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"
)

const DefaultAvatarMaxSizeMB = 2

type ProfileService struct {
	repo           repository.ProfileRepository
	store          storage.Store
	events         EventPublisher
	avatarMaxBytes int64
	now            func() time.Time
}

// UpdateProfileInput carries the editable profile fields. Nil leaves a field unchanged.
type UpdateProfileInput struct {
	Username *string
	FullName *string
}

// AvatarInput is an uploaded avatar file.
type AvatarInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

func NewProfileService(repo repository.ProfileRepository, store storage.Store, events EventPublisher, avatarMaxSizeMB int) *ProfileService {
	if avatarMaxSizeMB <= 0 {
		avatarMaxSizeMB = DefaultAvatarMaxSizeMB
	}
	return &ProfileService{
		repo:           repo,
		store:          store,
		events:         eventsOrNoop(events),
		avatarMaxBytes: int64(avatarMaxSizeMB) << 20,
		now:            time.Now,
	}
}

func (s *ProfileService) Get(ctx context.Context, id uint) (*models.Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProfileService) Me(ctx context.Context, session *auth.Session) (*models.Profile, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, session.UserID)
}

// List returns profiles newest first, filtered by username or full name.
func (s *ProfileService) List(ctx context.Context, query string, limit, offset int) ([]*models.Profile, error) {
	return searchPage(query, limit, offset, ProfileFields, func(limit, offset int) ([]*models.Profile, error) {
		return s.repo.List(ctx, limit, offset)
	})
}

// UpdateMe edits the caller's username and full name. A taken username is a Conflict.
func (s *ProfileService) UpdateMe(ctx context.Context, session *auth.Session, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.Me(ctx, session)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		username, err := validation.NormalizeUsername(*in.Username)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Username = username
	}
	if in.FullName != nil {
		fullName, err := validation.NormalizeFullName(*in.FullName)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.FullName = fullName
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, profile)
	return profile, nil
}

// UploadAvatar replaces the caller's avatar. The previous file is removed best effort.
func (s *ProfileService) UploadAvatar(ctx context.Context, session *auth.Session, in AvatarInput) (*models.Profile, error) {
	profile, err := s.Me(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.avatarMaxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("Avatar too large (max %dMB)", s.avatarMaxBytes>>20))
	}
	declared := normalizeContentType(in.ContentType)
	detected := normalizeContentType(http.DetectContentType(in.Content))
	if (declared != "" && !strings.HasPrefix(declared, "image/")) || !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Avatar must be an image")
	}

	objectPath := fmt.Sprintf("avatars/%d-%d%s", profile.ID, s.now().UnixMilli(), imageExtension(detected))
	obj, err := s.store.Put(ctx, storage.BucketImages, objectPath, bytes.NewReader(in.Content), detected)
	if err != nil {
		return nil, models.NewRemoteCallError("upload avatar", err)
	}

	previous := profile.AvatarPath
	profile.AvatarURL = obj.URL
	profile.AvatarPath = obj.Path
	if err := s.repo.Update(ctx, profile); err != nil {
		removeQuietly(ctx, s.store, storage.BucketImages, obj.Path)
		return nil, err
	}
	if previous != "" && previous != obj.Path {
		removeQuietly(ctx, s.store, storage.BucketImages, previous)
	}
	s.publishUpdated(ctx, profile)
	return profile, nil
}

func (s *ProfileService) publishUpdated(ctx context.Context, profile *models.Profile) {
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventProfileUpdated,
		Table:    "profiles",
		Action:   notifications.ActionUpdate,
		RecordID: profile.ID,
		UserID:   profile.ID,
		Record:   profile.Public(),
	})
}

func imageExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
