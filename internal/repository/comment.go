package repository

import (
	"context"
	"errors"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence for image comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.ImageComment) error
	GetByID(ctx context.Context, id uint) (*models.ImageComment, error)
	ListByImage(ctx context.Context, imageID uint) ([]*models.ImageComment, error)
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.ImageComment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return r.db.WithContext(ctx).Preload("Author").First(comment, comment.ID).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.ImageComment, error) {
	var comment models.ImageComment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

// ListByImage returns comments oldest first.
func (r *commentRepository) ListByImage(ctx context.Context, imageID uint) ([]*models.ImageComment, error) {
	var comments []*models.ImageComment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("image_id = ?", imageID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ImageComment{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
