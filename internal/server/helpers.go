package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten signals that a helper already wrote the error response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query params.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit/offset from the query string. Limit is capped at 100.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// parseID parses a positive integer route param. On failure it writes a 400
// and returns errResponseWritten; callers should `return nil`.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseKind parses the :kind route param into a media kind.
func parseKind(c *fiber.Ctx) (models.MediaKind, error) {
	kind, err := models.ParseMediaKind(c.Params("kind"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusNotFound, err)
		return "", errResponseWritten
	}
	return kind, nil
}

// humanizeParam turns "commentId" into "comment ID" and "id" into "ID".
func humanizeParam(param string) string {
	words := splitCamel(param)
	for i, w := range words {
		if strings.EqualFold(w, "id") {
			words[i] = "ID"
		} else {
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, " ")
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// sessionFrom returns the session bound by AuthRequired, or nil.
func sessionFrom(c *fiber.Ctx) *auth.Session {
	session, _ := c.Locals("session").(*auth.Session)
	return session
}

// mapServiceError picks the HTTP status for a service error.
func mapServiceError(err error) int {
	return models.StatusForError(err)
}

func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var admin bool
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Select("is_admin").
		Where("id = ?", userID).
		Scan(&admin).Error
	return admin, err
}
