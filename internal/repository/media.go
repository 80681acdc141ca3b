package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const decrementLikes = "CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END"

// Sort orders accepted by List.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortMostLiked  = "most-liked"
	SortLeastLiked = "least-liked"
)

// ListOptions narrows and orders a media listing.
type ListOptions struct {
	Limit    int
	Offset   int
	Sort     string
	UserID   uint // only items owned by this profile when non-zero
	ViewerID uint // fills Liked for this profile when non-zero
}

// MediaRepository persists images, videos and music.
type MediaRepository interface {
	Create(ctx context.Context, item models.MediaItem) error
	GetByID(ctx context.Context, kind models.MediaKind, id, viewerID uint) (models.MediaItem, error)
	List(ctx context.Context, kind models.MediaKind, opts ListOptions) ([]models.MediaItem, error)
	ListByOwner(ctx context.Context, kind models.MediaKind, userID uint) ([]models.MediaItem, error)
	UpdateDetails(ctx context.Context, item models.MediaItem, title string, description *string) error
	Count(ctx context.Context, kind models.MediaKind) (int64, error)
	ToggleLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint) (models.LikeResult, error)
	SetLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint, liked bool) (models.LikeResult, error)
	Delete(ctx context.Context, item models.MediaItem) error
}

type mediaRepository struct {
	db    *gorm.DB
	store storage.Store
}

// NewMediaRepository returns a MediaRepository that removes backing files through store.
func NewMediaRepository(db *gorm.DB, store storage.Store) MediaRepository {
	return &mediaRepository{db: db, store: store}
}

func likeModel(kind models.MediaKind) any {
	switch kind {
	case models.MediaImage:
		return &models.ImageLike{}
	case models.MediaVideo:
		return &models.VideoLike{}
	default:
		return &models.MusicLike{}
	}
}

func newLike(kind models.MediaKind, mediaID, userID uint) any {
	switch kind {
	case models.MediaImage:
		return &models.ImageLike{ImageID: mediaID, UserID: userID}
	case models.MediaVideo:
		return &models.VideoLike{VideoID: mediaID, UserID: userID}
	default:
		return &models.MusicLike{MusicID: mediaID, UserID: userID}
	}
}

func (r *mediaRepository) Create(ctx context.Context, item models.MediaItem) error {
	defer observability.TrackQuery("create", item.Kind().Table())()
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) GetByID(ctx context.Context, kind models.MediaKind, id, viewerID uint) (models.MediaItem, error) {
	defer observability.TrackQuery("get_by_id", kind.Table())()

	item := models.NewMediaItem(kind)
	if err := r.db.WithContext(ctx).Preload("Owner").First(item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(kind.Label(), id)
		}
		return nil, models.NewInternalError(err)
	}
	if err := r.markLiked(ctx, kind, []models.MediaItem{item}, viewerID); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *mediaRepository) List(ctx context.Context, kind models.MediaKind, opts ListOptions) ([]models.MediaItem, error) {
	span, ctx := observability.StartRepositorySpan(ctx, "List", kind.Table())
	defer span.End()
	defer observability.TrackQuery("list", kind.Table())()

	q := applySort(r.db.WithContext(ctx).Preload("Owner"), opts.Sort)
	if opts.UserID != 0 {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	items, err := findItems(q, kind)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	span.AddAttributes(attribute.Int("rows", len(items)))
	if err := r.markLiked(ctx, kind, items, opts.ViewerID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *mediaRepository) ListByOwner(ctx context.Context, kind models.MediaKind, userID uint) ([]models.MediaItem, error) {
	items, err := findItems(r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id"), kind)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *mediaRepository) UpdateDetails(ctx context.Context, item models.MediaItem, title string, description *string) error {
	err := r.db.WithContext(ctx).Model(item).Updates(map[string]any{
		"title":       title,
		"description": description,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) Count(ctx context.Context, kind models.MediaKind) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Table(kind.Table()).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// applySort appends the ORDER BY clause; unknown values fall back to newest first.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortOldest:
		return db.Order("created_at ASC, id ASC")
	case SortMostLiked:
		return db.Order("likes_count DESC, created_at DESC")
	case SortLeastLiked:
		return db.Order("likes_count ASC, created_at DESC")
	default:
		return db.Order("created_at DESC, id DESC")
	}
}

func findItems(db *gorm.DB, kind models.MediaKind) ([]models.MediaItem, error) {
	switch kind {
	case models.MediaImage:
		return find[models.Image](db)
	case models.MediaVideo:
		return find[models.Video](db)
	default:
		return find[models.Music](db)
	}
}

func find[T any, PT interface {
	*T
	models.MediaItem
}](db *gorm.DB) ([]models.MediaItem, error) {
	var rows []T
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]models.MediaItem, len(rows))
	for i := range rows {
		items[i] = PT(&rows[i])
	}
	return items, nil
}

func (r *mediaRepository) markLiked(ctx context.Context, kind models.MediaKind, items []models.MediaItem, viewerID uint) error {
	if viewerID == 0 || len(items) == 0 {
		return nil
	}
	ids := make([]uint, len(items))
	for i, item := range items {
		ids[i] = item.MediaID()
	}

	var liked []uint
	err := r.db.WithContext(ctx).Table(kind.LikeTable()).
		Where("user_id = ? AND "+kind.LikeColumn()+" IN ?", viewerID, ids).
		Pluck(kind.LikeColumn(), &liked).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for _, item := range items {
		_, ok := set[item.MediaID()]
		item.SetLiked(ok)
	}
	return nil
}

// ToggleLike flips the viewer's like and adjusts likes_count in the same transaction.
func (r *mediaRepository) ToggleLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint) (models.LikeResult, error) {
	return r.like(ctx, kind, mediaID, userID, nil)
}

// SetLike makes the like state equal to liked; repeating it changes nothing.
func (r *mediaRepository) SetLike(ctx context.Context, kind models.MediaKind, mediaID, userID uint, liked bool) (models.LikeResult, error) {
	return r.like(ctx, kind, mediaID, userID, &liked)
}

func (r *mediaRepository) like(ctx context.Context, kind models.MediaKind, mediaID, userID uint, want *bool) (models.LikeResult, error) {
	defer observability.TrackQuery("like", kind.LikeTable())()

	var result models.LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Table(kind.Table()).Where("id = ?", mediaID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError(kind.Label(), mediaID)
		}

		delta := 0
		if want == nil || *want {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(newLike(kind, mediaID, userID))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				delta = 1
			}
		}
		if delta == 0 && (want == nil || !*want) {
			res := tx.Where(kind.LikeColumn()+" = ? AND user_id = ?", mediaID, userID).Delete(likeModel(kind))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				delta = -1
			}
		}

		counter := tx.Table(kind.Table()).Where("id = ?", mediaID)
		switch delta {
		case 1:
			if err := counter.UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error; err != nil {
				return err
			}
		case -1:
			if err := counter.UpdateColumn("likes_count", gorm.Expr(decrementLikes)).Error; err != nil {
				return err
			}
		}

		var liked int64
		if err := tx.Table(kind.LikeTable()).
			Where(kind.LikeColumn()+" = ? AND user_id = ?", mediaID, userID).
			Count(&liked).Error; err != nil {
			return err
		}
		var counts []int
		if err := tx.Table(kind.Table()).Where("id = ?", mediaID).Pluck("likes_count", &counts).Error; err != nil {
			return err
		}
		result.Liked = liked > 0
		if len(counts) > 0 {
			result.LikesCount = counts[0]
		}
		return nil
	})
	if err != nil {
		return models.LikeResult{}, wrapTxError(err)
	}
	return result, nil
}

// Delete removes likes, comments, the row and its stored files in one
// transaction. A file that is already gone is ignored; any other storage error
// rolls the row deletion back.
func (r *mediaRepository) Delete(ctx context.Context, item models.MediaItem) error {
	kind := item.Kind()
	span, ctx := observability.StartRepositorySpan(ctx, "Delete", kind.Table())
	defer span.End()
	defer observability.TrackQuery("delete", kind.Table())()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() == "postgres" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var ids []uint
		if err := locked.Table(kind.Table()).Where("id = ?", item.MediaID()).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return models.NewNotFoundError(kind.Label(), item.MediaID())
		}

		if err := tx.Where(kind.LikeColumn()+" = ?", item.MediaID()).Delete(likeModel(kind)).Error; err != nil {
			return err
		}
		if kind == models.MediaImage {
			if err := tx.Where("image_id = ?", item.MediaID()).Delete(&models.ImageComment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}

		for _, f := range item.Files() {
			err := storage.RemoveIgnoringMissing(ctx, r.store, f.Bucket, f.Path)
			observability.StorageOperations.WithLabelValues(r.store.Driver(), "remove", observability.Outcome(err)).Inc()
			if err != nil {
				return models.NewRemoteCallError("remove "+f.Bucket+"/"+f.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return wrapTxError(err)
	}
	return nil
}

// wrapTxError keeps AppErrors raised inside a transaction and wraps the rest.
func wrapTxError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(fmt.Errorf("transaction: %w", err))
}
