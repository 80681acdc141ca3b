package service

import (
	"context"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"
)

const commentsTable = "image_comments"

type CommentService struct {
	commentRepo repository.CommentRepository
	mediaRepo   repository.MediaRepository
	events      EventPublisher
	isAdmin     AdminChecker
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	mediaRepo repository.MediaRepository,
	events EventPublisher,
	isAdmin AdminChecker,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		mediaRepo:   mediaRepo,
		events:      eventsOrNoop(events),
		isAdmin:     isAdmin,
	}
}

func (s *CommentService) List(ctx context.Context, imageID uint) ([]*models.ImageComment, error) {
	if _, err := s.mediaRepo.GetByID(ctx, models.MediaImage, imageID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByImage(ctx, imageID)
}

func (s *CommentService) Create(ctx context.Context, session *auth.Session, imageID uint, content string) (*models.ImageComment, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	text, err := validation.NormalizeComment(content)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.mediaRepo.GetByID(ctx, models.MediaImage, imageID, 0); err != nil {
		return nil, err
	}

	comment := &models.ImageComment{ImageID: imageID, UserID: session.UserID, Content: text}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventCommentCreated,
		Table:    commentsTable,
		Action:   notifications.ActionInsert,
		RecordID: comment.ID,
		UserID:   session.UserID,
		Record:   comment,
	})
	return comment, nil
}

// Delete removes a comment. The author or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, session *auth.Session, imageID, commentID uint) error {
	if err := requireSession(session); err != nil {
		return err
	}
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.ImageID != imageID {
		return models.NewNotFoundError("Comment", commentID)
	}
	if err := authorizeOwner(ctx, session, comment.UserID, s.isAdmin, "delete this comment"); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}
	s.events.PublishChange(ctx, notifications.ChangeEvent{
		Type:     notifications.EventCommentDeleted,
		Table:    commentsTable,
		Action:   notifications.ActionDelete,
		RecordID: commentID,
		UserID:   comment.UserID,
		Record:   map[string]any{"id": commentID, "image_id": imageID},
	})
	return nil
}
