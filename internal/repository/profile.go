// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]*models.Profile, error)
	Count(ctx context.Context) (int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	defer observability.TrackQuery("get_by_id", "profiles")()

	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Profile", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEmail returns nil, nil when no profile uses the address.
func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.findOne(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername returns nil, nil when the name is free.
func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return r.findOne(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *profileRepository) findOne(ctx context.Context, query string, arg any) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where(query, arg).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	defer observability.TrackQuery("create", "profiles")()

	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("email or username already taken", err)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateAdminOverview(ctx)
	return nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	defer observability.TrackQuery("update", "profiles")()

	err := r.db.WithContext(ctx).Model(profile).Select("username", "full_name", "avatar_url", "avatar_path").Updates(profile).Error
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("username already taken", err)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateProfile(ctx, profile.ID)
	return nil
}

func (r *profileRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	cache.InvalidateProfile(ctx, id)
	return nil
}

// Delete removes the profile together with the likes and comments it left on
// other users' media. Media owned by the profile must be deleted first so its
// files are cleaned up.
func (r *profileRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "profiles")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range models.MediaKinds {
			liked := tx.Table(kind.LikeTable()).Select(kind.LikeColumn()).Where("user_id = ?", id)
			if err := tx.Table(kind.Table()).
				Where("id IN (?)", liked).
				UpdateColumn("likes_count", gorm.Expr(decrementLikes)).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(likeModel(kind)).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ImageComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.GenerationJob{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Profile{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Profile", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(fmt.Errorf("delete profile %d: %w", id, err))
	}
	cache.InvalidateProfile(ctx, id)
	cache.InvalidateAdminOverview(ctx)
	return nil
}

func (r *profileRepository) List(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	var profiles []*models.Profile
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *profileRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
