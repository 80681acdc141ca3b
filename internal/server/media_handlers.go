package server

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/service"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListMediaQuery is the query string of the catalogue listings.
type ListMediaQuery struct {
	Sort   string `query:"sort" validate:"omitempty,oneof=newest oldest most-liked least-liked"`
	Q      string `query:"q" validate:"max=200"`
	UserID uint   `query:"user_id"`
}

// PublishRequest is the body of POST /api/{kind}/publish.
type PublishRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	SourceURL   string   `json:"source_url" validate:"required"`
	CoverURL    string   `json:"cover_url" validate:"omitempty,http_url"`
	Tags        []string `json:"tags"`
}

// UpdateMediaRequest is the body of PATCH /api/{kind}/:id.
type UpdateMediaRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) parseListInput(c *fiber.Ctx) (service.ListInput, error) {
	var q ListMediaQuery
	if err := c.QueryParser(&q); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid query"))
		return service.ListInput{}, errResponseWritten
	}
	if err := validation.Struct(q); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
		return service.ListInput{}, errResponseWritten
	}
	page := parsePagination(c, 24)
	return service.ListInput{
		Sort:   q.Sort,
		Query:  q.Q,
		UserID: q.UserID,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// ListMedia lists one catalogue with the viewer's likes marked.
func (s *Server) ListMedia(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := s.parseListInput(c)
		if err != nil {
			return nil
		}
		items, err := s.mediaService.List(c.UserContext(), kind, s.optionalSession(c), in)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(items)
	}
}

// ListMyMedia lists the caller's own items of :kind.
func (s *Server) ListMyMedia(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	in, err := s.parseListInput(c)
	if err != nil {
		return nil
	}
	items, err := s.mediaService.ListMine(c.UserContext(), sessionFrom(c), kind, in)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(items)
}

func (s *Server) GetMedia(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		item, err := s.mediaService.Get(c.UserContext(), kind, id, s.optionalSession(c))
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(item)
	}
}

// UpdateMedia edits title and description; owner or admin only.
func (s *Server) UpdateMedia(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		var req UpdateMediaRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		item, err := s.mediaService.UpdateDetails(c.UserContext(), sessionFrom(c), kind, id, req.Title, req.Description)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(item)
	}
}

// UploadImage accepts a multipart form with an "image" file, a title and tags.
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Image file is required"))
	}
	content, err := readFormFile(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}

	var tags []string
	if form, err := c.MultipartForm(); err == nil {
		tags = form.Value["tags"]
	}

	img, err := s.mediaService.UploadImage(c.UserContext(), sessionFrom(c), service.UploadImageInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        tags,
		Prompt:      c.FormValue("prompt"),
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}

// PublishMedia stores a generated result in the catalogue of kind.
func (s *Server) PublishMedia(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PublishRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		req.Title = strings.TrimSpace(req.Title)
		req.SourceURL = strings.TrimSpace(req.SourceURL)
		if err := validation.Struct(req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
		}

		item, err := s.mediaService.Publish(c.UserContext(), sessionFrom(c), kind, service.PublishInput{
			Title:       req.Title,
			Description: req.Description,
			Prompt:      req.Prompt,
			SourceURL:   req.SourceURL,
			CoverURL:    req.CoverURL,
			Tags:        req.Tags,
		})
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// ToggleLike flips the caller's like.
func (s *Server) ToggleLike(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		res, err := s.mediaService.ToggleLike(c.UserContext(), sessionFrom(c), kind, id)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(res)
	}
}

// SetLike makes the caller's like state equal to liked.
func (s *Server) SetLike(kind models.MediaKind, liked bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		res, err := s.mediaService.SetLike(c.UserContext(), sessionFrom(c), kind, id, liked)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(res)
	}
}

// DeleteMedia removes an item with its files; owner or admin only.
func (s *Server) DeleteMedia(kind models.MediaKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		if err := s.mediaService.Delete(c.UserContext(), sessionFrom(c), kind, id); err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		return c.JSON(fiber.Map{"message": kind.Label() + " deleted"})
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
