package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=100"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup creates a profile and returns a token for it.
func (s *Server) Signup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}

	username, err := validation.NormalizeUsername(req.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}

	existing, err := s.profileRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Email already registered", nil))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	profile := &models.Profile{
		Email:    req.Email,
		Password: string(hashed),
		Username: username,
		FullName: strings.TrimSpace(req.FullName),
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	token, _, err := s.tokens.Issue(profile.ID, profile.Username, profile.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(ctx, "profile created", slog.Uint64("user_id", uint64(profile.ID)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   token,
		"profile": profile,
	})
}

// Login exchanges email and password for a token.
func (s *Server) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}

	profile, err := s.profileRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if profile == nil || bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)) != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, _, err := s.tokens.Issue(profile.ID, profile.Username, profile.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"token":   token,
		"profile": profile,
	})
}

// Logout revokes the current token until it would have expired.
func (s *Server) Logout(c *fiber.Ctx) error {
	session := sessionFrom(c)
	if session != nil && session.TokenID != "" && s.redis != nil {
		ttl := time.Until(session.ExpiresAt)
		if ttl > 0 {
			if err := s.redis.Set(c.UserContext(), cache.BlacklistKey(session.TokenID), "1", ttl).Err(); err != nil {
				return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
			}
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// GetSession returns the current session with the caller's profile.
func (s *Server) GetSession(c *fiber.Ctx) error {
	session := sessionFrom(c)
	profile, err := s.profileService.Me(c.UserContext(), session)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(fiber.Map{
		"session": session,
		"profile": profile,
	})
}

// IssueWSTicket returns a single-use ticket for opening the realtime socket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errors.New("realtime tickets require Redis")))
	}
	session := sessionFrom(c)
	ticket := uuid.NewString()
	err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket),
		strconv.FormatUint(uint64(session.UserID), 10), cache.WSTicketTTL).Err()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL / time.Second),
	})
}
