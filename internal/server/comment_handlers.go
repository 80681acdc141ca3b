package server

import (
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateCommentRequest is the body of POST /api/images/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// GetComments lists an image's comments, oldest first.
func (s *Server) GetComments(c *fiber.Ctx) error {
	imageID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.List(c.UserContext(), imageID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(comments)
}

func (s *Server) CreateComment(c *fiber.Ctx) error {
	imageID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	comment, err := s.commentService.Create(c.UserContext(), sessionFrom(c), imageID, req.Content)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment removes a comment; author or admin only.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	imageID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := s.commentService.Delete(c.UserContext(), sessionFrom(c), imageID, commentID); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}
