package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const DefaultMaxUploadSizeMB = 50

// MediaService owns the gallery catalogue: listing, upload, publish, likes and delete.
type MediaService struct {
	repo           repository.MediaRepository
	store          storage.Store
	fetcher        *storage.Fetcher
	events         EventPublisher
	isAdmin        AdminChecker
	maxUploadBytes int64
	now            func() time.Time
}

// MediaServiceDeps wires a MediaService.
type MediaServiceDeps struct {
	Repo            repository.MediaRepository
	Store           storage.Store
	Fetcher         *storage.Fetcher
	Events          EventPublisher
	IsAdmin         AdminChecker
	MaxUploadSizeMB int
}

func NewMediaService(deps MediaServiceDeps) *MediaService {
	maxMB := deps.MaxUploadSizeMB
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadSizeMB
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = storage.NewFetcher(2*time.Minute, int64(maxMB)<<20)
	}
	return &MediaService{
		repo:           deps.Repo,
		store:          deps.Store,
		fetcher:        fetcher,
		events:         eventsOrNoop(deps.Events),
		isAdmin:        deps.IsAdmin,
		maxUploadBytes: int64(maxMB) << 20,
		now:            time.Now,
	}
}

// ListInput narrows a catalogue listing.
type ListInput struct {
	Sort   string
	Query  string
	UserID uint
	Limit  int
	Offset int
}

// List returns one page of kind, filtered by Query. viewer may be nil.
func (s *MediaService) List(ctx context.Context, kind models.MediaKind, viewer *auth.Session, in ListInput) ([]models.MediaItem, error) {
	opts := repository.ListOptions{
		Sort:   in.Sort,
		UserID: in.UserID,
	}
	if viewer.Valid() {
		opts.ViewerID = viewer.UserID
	}
	return searchPage(in.Query, in.Limit, in.Offset, MediaFields, func(limit, offset int) ([]models.MediaItem, error) {
		opts.Limit, opts.Offset = limit, offset
		return s.repo.List(ctx, kind, opts)
	})
}

// ListMine lists the caller's own items of kind.
func (s *MediaService) ListMine(ctx context.Context, session *auth.Session, kind models.MediaKind, in ListInput) ([]models.MediaItem, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	in.UserID = session.UserID
	return s.List(ctx, kind, session, in)
}

func (s *MediaService) Get(ctx context.Context, kind models.MediaKind, id uint, viewer *auth.Session) (models.MediaItem, error) {
	var viewerID uint
	if viewer.Valid() {
		viewerID = viewer.UserID
	}
	return s.repo.GetByID(ctx, kind, id, viewerID)
}

// UploadImageInput is a multipart image upload.
type UploadImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
	Title       string
	Description string
	Tags        []string
	Prompt      string
}

// UploadImage stores a JPEG master and WebP thumbnail and creates the image row.
func (s *MediaService) UploadImage(ctx context.Context, session *auth.Session, in UploadImageInput) (*models.Image, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	title, err := validation.NormalizeTitle(in.Title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if int64(len(in.Content)) > s.maxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadBytes>>20))
	}

	img := &models.Image{
		UserID:      session.UserID,
		Title:       title,
		Description: validation.NormalizeDescription(in.Description),
		Tags:        tags,
		Prompt:      optionalString(in.Prompt),
	}
	if err := s.storeImage(ctx, img, in.Content, in.ContentType); err != nil {
		return nil, err
	}
	return img, s.create(ctx, session, img)
}

// storeImage normalizes content and writes the master and thumbnail files.
func (s *MediaService) storeImage(ctx context.Context, img *models.Image, content []byte, contentType string) error {
	processed, err := processImage(content, contentType)
	if err != nil {
		return err
	}

	base := s.objectBase(img.UserID)
	master, err := s.put(ctx, storage.BucketImages, base+".jpg", processed.Master, "image/jpeg")
	if err != nil {
		return err
	}
	thumb, err := s.put(ctx, storage.BucketImages, base+"_thumb.webp", processed.Thumbnail, "image/webp")
	if err != nil {
		s.removeQuietly(ctx, storage.BucketImages, master.Path)
		return err
	}

	img.ImageURL = master.URL
	img.StoragePath = master.Path
	img.ThumbnailURL = thumb.URL
	img.ThumbnailPath = thumb.Path
	img.Width = processed.Width
	img.Height = processed.Height
	return nil
}

// PublishInput saves a generated result into the catalogue.
type PublishInput struct {
	Title       string
	Description string
	Prompt      string
	SourceURL   string
	CoverURL    string
	Tags        []string
}

// Publish downloads SourceURL into storage and creates a row of kind.
func (s *MediaService) Publish(ctx context.Context, session *auth.Session, kind models.MediaKind, in PublishInput) (models.MediaItem, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	title, err := validation.NormalizeTitle(in.Title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateURL(in.SourceURL); err != nil {
		return nil, models.NewValidationError("source_url: " + err.Error())
	}

	content, contentType, err := s.fetcher.Fetch(ctx, in.SourceURL)
	if errors.Is(err, storage.ErrPrivateAddress) {
		return nil, models.NewValidationError("source_url must point to a public host")
	}
	if err != nil {
		return nil, models.NewRemoteCallError("download generated media", err)
	}
	description := validation.NormalizeDescription(in.Description)
	prompt := optionalString(in.Prompt)

	var item models.MediaItem
	switch kind {
	case models.MediaImage:
		tags, tagErr := validation.NormalizeTags(append(append([]string{}, in.Tags...), "ai"))
		if tagErr != nil {
			return nil, models.NewValidationError(tagErr.Error())
		}
		img := &models.Image{UserID: session.UserID, Title: title, Description: description, Prompt: prompt, Tags: tags}
		if err := s.storeImage(ctx, img, content, contentType); err != nil {
			return nil, err
		}
		item = img
	case models.MediaVideo:
		obj, err := s.putMedia(ctx, kind, session.UserID, content, ".mp4", "video/")
		if err != nil {
			return nil, err
		}
		item = &models.Video{
			UserID: session.UserID, Title: title, Description: description, Prompt: prompt,
			VideoURL: obj.URL, StoragePath: obj.Path,
		}
	default:
		obj, err := s.putMedia(ctx, kind, session.UserID, content, ".mp3", "audio/")
		if err != nil {
			return nil, err
		}
		item = &models.Music{
			UserID: session.UserID, Title: title, Description: description, Prompt: prompt,
			AudioURL: obj.URL, CoverURL: strings.TrimSpace(in.CoverURL), StoragePath: obj.Path,
		}
	}

	return item, s.create(ctx, session, item)
}

// putMedia sniffs content, requires the given MIME family and stores it.
func (s *MediaService) putMedia(ctx context.Context, kind models.MediaKind, userID uint, content []byte, ext, family string) (storage.Object, error) {
	detected := mimetype.Detect(content)
	contentType := detected.String()
	if !strings.HasPrefix(contentType, family) {
		return storage.Object{}, models.NewValidationError(fmt.Sprintf("Expected %s content, got %s", strings.TrimSuffix(family, "/"), contentType))
	}
	if e := detected.Extension(); e != "" {
		ext = e
	}
	return s.put(ctx, kind.Bucket(), s.objectBase(userID)+ext, content, contentType)
}

func (s *MediaService) create(ctx context.Context, session *auth.Session, item models.MediaItem) error {
	if err := s.repo.Create(ctx, item); err != nil {
		for _, f := range item.Files() {
			s.removeQuietly(ctx, f.Bucket, f.Path)
		}
		return err
	}
	cache.InvalidateAdminOverview(ctx)
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventMediaCreated,
		Table:    item.Kind().Table(),
		Action:   notifications.ActionInsert,
		RecordID: item.MediaID(),
		UserID:   session.UserID,
		Record:   item,
	})
	return nil
}

// UpdateDetails lets the owner rename an item or change its description.
func (s *MediaService) UpdateDetails(ctx context.Context, session *auth.Session, kind models.MediaKind, id uint, title, description string) (models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, kind, id, 0)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(ctx, session, item.OwnerID(), s.isAdmin, "edit this "+strings.ToLower(kind.Label())); err != nil {
		return nil, err
	}
	t, err := validation.NormalizeTitle(title)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.repo.UpdateDetails(ctx, item, t, validation.NormalizeDescription(description)); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetByID(ctx, kind, id, session.UserID)
	if err != nil {
		return nil, err
	}
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventMediaUpdated,
		Table:    kind.Table(),
		Action:   notifications.ActionUpdate,
		RecordID: id,
		UserID:   item.OwnerID(),
		Record:   updated,
	})
	return updated, nil
}

// ToggleLike flips the caller's like on an item.
func (s *MediaService) ToggleLike(ctx context.Context, session *auth.Session, kind models.MediaKind, id uint) (models.LikeResult, error) {
	if err := requireSession(session); err != nil {
		return models.LikeResult{}, err
	}
	res, err := s.repo.ToggleLike(ctx, kind, id, session.UserID)
	if err != nil {
		return res, err
	}
	s.publishLike(ctx, kind, id, session.UserID, res)
	return res, nil
}

// SetLike makes the caller's like state equal to liked.
func (s *MediaService) SetLike(ctx context.Context, session *auth.Session, kind models.MediaKind, id uint, liked bool) (models.LikeResult, error) {
	if err := requireSession(session); err != nil {
		return models.LikeResult{}, err
	}
	res, err := s.repo.SetLike(ctx, kind, id, session.UserID, liked)
	if err != nil {
		return res, err
	}
	s.publishLike(ctx, kind, id, session.UserID, res)
	return res, nil
}

func (s *MediaService) publishLike(ctx context.Context, kind models.MediaKind, id, userID uint, res models.LikeResult) {
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventMediaLiked,
		Table:    kind.Table(),
		Action:   notifications.ActionUpdate,
		RecordID: id,
		UserID:   userID,
		Record: map[string]any{
			"id":          id,
			"likes_count": res.LikesCount,
			"liked":       res.Liked,
			"liked_by":    userID,
		},
	})
}

// Delete removes an item, its likes, comments and files. Only the owner or an
// admin may delete; anyone else gets Forbidden before anything is touched.
func (s *MediaService) Delete(ctx context.Context, session *auth.Session, kind models.MediaKind, id uint) error {
	if err := requireSession(session); err != nil {
		return err
	}
	item, err := s.repo.GetByID(ctx, kind, id, 0)
	if err != nil {
		return err
	}
	if err := authorizeOwner(ctx, session, item.OwnerID(), s.isAdmin, "delete this "+strings.ToLower(kind.Label())); err != nil {
		return err
	}
	return s.deleteItem(ctx, item)
}

func (s *MediaService) deleteItem(ctx context.Context, item models.MediaItem) error {
	if err := s.repo.Delete(ctx, item); err != nil {
		return err
	}
	cache.InvalidateAdminOverview(ctx)
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventMediaDeleted,
		Table:    item.Kind().Table(),
		Action:   notifications.ActionDelete,
		RecordID: item.MediaID(),
		UserID:   item.OwnerID(),
		Record:   map[string]any{"id": item.MediaID()},
	})
	return nil
}

// objectBase names a new upload. The suffix keeps two uploads in the same millisecond apart.
func (s *MediaService) objectBase(userID uint) string {
	return fmt.Sprintf("%d/%d-%s", userID, s.now().UnixMilli(), uuid.NewString()[:8])
}

func (s *MediaService) put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (storage.Object, error) {
	obj, err := s.store.Put(ctx, bucket, objectPath, bytes.NewReader(data), contentType)
	observability.StorageOperations.WithLabelValues(s.store.Driver(), "put", observability.Outcome(err)).Inc()
	if err != nil {
		return storage.Object{}, models.NewRemoteCallError("upload "+bucket+"/"+objectPath, err)
	}
	return obj, nil
}

func (s *MediaService) removeQuietly(ctx context.Context, bucket, objectPath string) {
	removeQuietly(ctx, s.store, bucket, objectPath)
}

// removeQuietly deletes a file whose row is gone or was never written. A
// failure leaves an orphan behind, so it is logged and not returned.
func removeQuietly(ctx context.Context, store storage.Store, bucket, objectPath string) {
	if err := storage.RemoveIgnoringMissing(ctx, store, bucket, objectPath); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove orphaned file",
			slog.String("bucket", bucket), slog.String("path", objectPath), slog.Any("error", err))
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
