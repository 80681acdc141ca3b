// Package server contains HTTP and WebSocket handlers for the gallery API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/auth"
	"github.com/aslbekqoziboyev/aiverselabs/internal/cache"
	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/featureflags"
	"github.com/aslbekqoziboyev/aiverselabs/internal/functions"
	"github.com/aslbekqoziboyev/aiverselabs/internal/generation"
	"github.com/aslbekqoziboyev/aiverselabs/internal/messaging"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/notifications"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/service"
	"github.com/aslbekqoziboyev/aiverselabs/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	Store      storage.Store
	Fetcher    *storage.Fetcher
	Functions  *functions.Registry
	Generators map[models.MediaKind]generation.Generator
	Publisher  *messaging.Publisher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *auth.Tokens
	store          storage.Store
	profileRepo    repository.ProfileRepository
	mediaRepo      repository.MediaRepository
	commentRepo    repository.CommentRepository
	jobRepo        repository.GenerationJobRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	publisher      *messaging.Publisher
	events         *eventFanout
	functions      *functions.Registry
	featureFlags   *featureflags.Manager

	mediaService      *service.MediaService
	profileService    *service.ProfileService
	commentService    *service.CommentService
	adminService      *service.AdminService
	generationService *service.GenerationService
}

// NewServer connects the database and Redis and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient(), Options{})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; the server then runs without cache, rate limits and
// cross-instance fan-out.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts Options) (*Server, error) {
	store := opts.Store
	if store == nil {
		var err error
		if store, err = storage.New(cfg); err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	}

	registry := opts.Functions
	if registry == nil {
		registry = functions.NewRegistry(functions.ConfigFrom(cfg), nil)
	}

	publisher := opts.Publisher
	if publisher == nil && cfg.NATSURL != "" {
		p, err := messaging.Connect(cfg.NATSURL)
		if err != nil {
			// Event export is optional; the gallery works without it.
			middleware.Logger.Warn("NATS unavailable, event export disabled", slog.String("error", err.Error()))
		} else {
			publisher = p
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("aiverselabs-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		tokens:         auth.NewTokens(cfg.JWTSecret),
		store:          store,
		profileRepo:    repository.NewProfileRepository(db),
		mediaRepo:      repository.NewMediaRepository(db, store),
		commentRepo:    repository.NewCommentRepository(db),
		jobRepo:        repository.NewGenerationJobRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		publisher:      publisher,
		functions:      registry,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.hubs = []wireableHub{s.hub}
	s.events = newEventFanout(s.notifier, s.hub, s.publisher)

	s.mediaService = service.NewMediaService(service.MediaServiceDeps{
		Repo:            s.mediaRepo,
		Store:           store,
		Fetcher:         opts.Fetcher,
		Events:          s.events,
		IsAdmin:         s.isAdminByUserID,
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
	})
	s.profileService = service.NewProfileService(s.profileRepo, store, s.events, cfg.AvatarMaxSizeMB)
	s.commentService = service.NewCommentService(s.commentRepo, s.mediaRepo, s.events, s.isAdminByUserID)
	s.adminService = service.NewAdminService(s.profileRepo, s.mediaRepo, s.mediaService, s.events)

	generators := opts.Generators
	if generators == nil {
		inv := generation.FuncInvoker{Registry: registry}
		generators = map[models.MediaKind]generation.Generator{
			models.MediaImage: generation.NewImageGenerator(inv),
			models.MediaVideo: generation.NewVideoGenerator(inv),
			models.MediaMusic: generation.NewMusicGenerator(inv),
		}
	}
	s.generationService = service.NewGenerationService(ctx, s.jobRepo, generators, s.featureFlags, s.events)

	return s, nil
}

// App builds the fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	bodyLimit := s.config.MaxUploadSizeMB
	if bodyLimit <= 0 {
		bodyLimit = service.DefaultMaxUploadSizeMB
	}
	app := fiber.New(fiber.Config{
		AppName:   "AIverse Labs API",
		BodyLimit: (bodyLimit + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Stored media is embedded by the web client from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	// Proxy functions answer with their own wildcard headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		Next:             isFunctionPath,
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/storage/")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

func isFunctionPath(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), functionsPrefix)
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "AIverse Labs Metrics Dashboard",
	}))

	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static("/storage", local.Root(), fiber.Static{MaxAge: 3600})
	}

	// Proxy functions
	fn := app.Group(functionsPrefix)
	fn.Options("/:name", s.FunctionPreflight)
	fn.Post("/:name", middleware.RateLimit(s.redis, 30, time.Minute, "functions"), s.InvokeFunction)

	authRequired := s.AuthRequired()
	api := app.Group("/api")
	api.Get("/", s.HealthCheck)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/logout", authRequired, s.Logout)
	authGroup.Get("/session", authRequired, s.GetSession)

	// Profiles: specific /me routes before generic /:id
	profiles := api.Group("/profiles")
	profiles.Get("/me", authRequired, s.GetMyProfile)
	profiles.Patch("/me", authRequired, s.UpdateMyProfile)
	profiles.Post("/me/avatar", authRequired, middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "avatar_upload"), s.UploadAvatar)
	profiles.Get("/", s.ListProfiles)
	profiles.Get("/:id", s.GetProfile)

	// "My" catalogues
	api.Get("/me/:kind", authRequired, s.ListMyMedia)

	// Media catalogues
	for _, kind := range models.MediaKinds {
		g := api.Group("/" + kind.Table())
		g.Get("/", s.ListMedia(kind))
		if kind == models.MediaImage {
			g.Post("/", authRequired, middleware.RateLimit(
				s.redis, 20, 10*time.Minute, "image_upload"), s.UploadImage)
		}
		g.Post("/publish", authRequired, middleware.RateLimit(
			s.redis, 20, 10*time.Minute, "publish"), s.PublishMedia(kind))
		// Define specific /:id/:resource routes BEFORE generic /:id route
		g.Post("/:id/like", authRequired, s.ToggleLike(kind))
		g.Put("/:id/like", authRequired, s.SetLike(kind, true))
		g.Delete("/:id/like", authRequired, s.SetLike(kind, false))
		if kind == models.MediaImage {
			g.Get("/:id/comments", s.GetComments)
			g.Post("/:id/comments", authRequired, middleware.RateLimit(
				s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
			g.Delete("/:id/comments/:commentId", authRequired, s.DeleteComment)
		}
		g.Get("/:id", s.GetMedia(kind))
		g.Patch("/:id", authRequired, s.UpdateMedia(kind))
		g.Delete("/:id", authRequired, s.DeleteMedia(kind))
	}

	// Generation jobs
	generations := api.Group("/generations", authRequired)
	generations.Post("/", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "generation"), s.StartGeneration)
	generations.Get("/", s.ListGenerations)
	generations.Post("/:id/cancel", s.CancelGeneration)
	generations.Get("/:id", s.GetGeneration)

	// Realtime
	api.Post("/ws/ticket", authRequired, s.IssueWSTicket)
	api.Get("/ws", authRequired, s.WebsocketHandler())

	// Admin routes
	admin := api.Group("/admin", authRequired, s.AdminRequired())
	admin.Get("/overview", s.AdminOverview)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/profiles", s.AdminListProfiles)
	admin.Post("/profiles/:id/promote", s.SetAdmin(true))
	admin.Post("/profiles/:id/demote", s.SetAdmin(false))
	admin.Delete("/profiles/:id", s.AdminDeleteProfile)
	admin.Get("/:kind", s.AdminListMedia)
	admin.Delete("/:kind/:id", s.AdminDeleteMedia)
}

// HealthCheck is an alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"storage": s.store.Driver(),
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"generation_jobs": s.generationService.Running(),
		"websockets":      s.hub.ConnectionCount(),
		"time":            time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the session is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := sessionFrom(c)
		if !session.Valid() {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.isAdminByUserID(c.UserContext(), session.UserID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired builds the request session from a WebSocket ticket or a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		// 1. WebSocket ticket (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			userIDStr, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
			if err == nil {
				if userID, parseErr := strconv.ParseUint(userIDStr, 10, 32); parseErr == nil && userID > 0 {
					s.bindSession(c, &auth.Session{UserID: uint(userID)})
					return c.Next()
				}
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Bearer token; WebSocket routes must use a ticket
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		session, err := s.tokens.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if session.TokenID != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), cache.BlacklistKey(session.TokenID)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		s.bindSession(c, session)
		return c.Next()
	}
}

// bindSession stores the session in locals and in the user context for logging.
func (s *Server) bindSession(c *fiber.Ctx, session *auth.Session) {
	c.Locals("userID", session.UserID)
	c.Locals("session", session)
	ctx := middleware.WithUserID(c.UserContext(), session.UserID)
	c.SetUserContext(auth.WithSession(ctx, session))
}

// optionalSession parses a bearer token if present but does not enforce it.
func (s *Server) optionalSession(c *fiber.Ctx) *auth.Session {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return nil
	}
	session, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil
	}
	return session
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Start builds the app, wires the hubs to Redis and listens.
func (s *Server) Start() error {
	app := s.App()

	if n, err := s.jobRepo.CancelActive(s.shutdownCtx, "server restarted"); err != nil {
		middleware.Logger.Warn("failed to cancel orphaned generation jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		middleware.Logger.Info("cancelled orphaned generation jobs", slog.Int64("count", n))
	}

	if s.notifier.Enabled() {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring",
						slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port),
		slog.String("storage", s.store.Driver()))
	if err := app.Listen(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring goroutines and jobs
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.generationService.Shutdown(ctx); err != nil {
		middleware.Logger.Error("generation jobs did not stop in time", slog.String("error", err.Error()))
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub",
				slog.String("hub", h.Name()), slog.String("error", err.Error()))
		}
	}

	if err := s.publisher.Close(); err != nil {
		middleware.Logger.Error("error closing NATS", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
