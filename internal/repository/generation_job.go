package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GenerationJobRepository persists generation jobs.
type GenerationJobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.GenerationJob, error)
	Save(ctx context.Context, job *models.GenerationJob) error
	CancelActive(ctx context.Context, reason string) (int64, error)
}

type generationJobRepository struct {
	db *gorm.DB
}

func NewGenerationJobRepository(db *gorm.DB) GenerationJobRepository {
	return &generationJobRepository{db: db}
}

func (r *generationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *generationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Generation job", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &job, nil
}

func (r *generationJobRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.GenerationJob, error) {
	var jobs []*models.GenerationJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return jobs, nil
}

func (r *generationJobRepository) Save(ctx context.Context, job *models.GenerationJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CancelActive marks every pending or running job cancelled, e.g. after a restart.
func (r *generationJobRepository) CancelActive(ctx context.Context, reason string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("status IN ?", []models.JobStatus{models.JobPending, models.JobRunning}).
		Updates(map[string]any{
			"status":       models.JobCancelled,
			"error":        reason,
			"completed_at": now,
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
