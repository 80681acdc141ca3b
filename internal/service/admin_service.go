package service

import (
	"context"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
)

// Overview is the admin dashboard counters.
type Overview struct {
	Profiles    int64     `json:"profiles"`
	Images      int64     `json:"images"`
	Videos      int64     `json:"videos"`
	Music       int64     `json:"music"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AdminService backs the admin panel. Callers must already be admins.
type AdminService struct {
	profiles  repository.ProfileRepository
	media     *MediaService
	mediaRepo repository.MediaRepository
	events    EventPublisher
}

func NewAdminService(profiles repository.ProfileRepository, mediaRepo repository.MediaRepository, media *MediaService, events EventPublisher) *AdminService {
	return &AdminService{
		profiles:  profiles,
		media:     media,
		mediaRepo: mediaRepo,
		events:    eventsOrNoop(events),
	}
}

// Overview counts rows per table, cached briefly in Redis.
func (s *AdminService) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	err := cache.Aside(ctx, cache.AdminOverviewKey, &out, cache.AdminOverviewTTL, func() error {
		var err error
		if out.Profiles, err = s.profiles.Count(ctx); err != nil {
			return err
		}
		if out.Images, err = s.mediaRepo.Count(ctx, models.MediaImage); err != nil {
			return err
		}
		if out.Videos, err = s.mediaRepo.Count(ctx, models.MediaVideo); err != nil {
			return err
		}
		if out.Music, err = s.mediaRepo.Count(ctx, models.MediaMusic); err != nil {
			return err
		}
		out.GeneratedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminService) ListMedia(ctx context.Context, kind models.MediaKind, query string, limit, offset int) ([]models.MediaItem, error) {
	return searchPage(query, limit, offset, MediaFields, func(limit, offset int) ([]models.MediaItem, error) {
		return s.mediaRepo.List(ctx, kind, repository.ListOptions{Sort: repository.SortNewest, Limit: limit, Offset: offset})
	})
}

// DeleteMedia removes any item regardless of owner.
func (s *AdminService) DeleteMedia(ctx context.Context, kind models.MediaKind, id uint) error {
	item, err := s.mediaRepo.GetByID(ctx, kind, id, 0)
	if err != nil {
		return err
	}
	return s.media.deleteItem(ctx, item)
}

// DeleteProfile deletes every item the user owns, with file cleanup, then the
// profile itself. Admins cannot delete themselves.
func (s *AdminService) DeleteProfile(ctx context.Context, session *auth.Session, id uint) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if session.UserID == id {
		return models.NewValidationError("Admins cannot delete their own account")
	}
	if _, err := s.profiles.GetByID(ctx, id); err != nil {
		return err
	}

	for _, kind := range models.MediaKinds {
		items, err := s.mediaRepo.ListByOwner(ctx, kind, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.media.deleteItem(ctx, item); err != nil {
				return err
			}
		}
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		return err
	}
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventProfileDeleted,
		Table:    "profiles",
		Action:   notifications.ActionDelete,
		RecordID: id,
		UserID:   id,
		Record:   map[string]any{"id": id},
	})
	return nil
}

// SetAdmin promotes or demotes a profile. Admins cannot demote themselves.
func (s *AdminService) SetAdmin(ctx context.Context, session *auth.Session, id uint, admin bool) (*models.Profile, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if session.UserID == id && !admin {
		return nil, models.NewValidationError("Admins cannot demote themselves")
	}
	if err := s.profiles.SetAdmin(ctx, id, admin); err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, id)
}
