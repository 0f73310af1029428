// Package api provides the local control API used by the desktop UI.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/download"
	"github.com/audiody/audiody/internal/player"
	"github.com/audiody/audiody/internal/search"
	"github.com/audiody/audiody/internal/tasks"
	"github.com/audiody/audiody/internal/validation"
)

// Library lists books in the local cache.
type Library interface {
	SavedBooks(ctx context.Context) ([]*domain.Book, error)
	SavedBook(ctx context.Context, title string) (*domain.Book, error)
}

// Searcher queries the saved-book index.
type Searcher interface {
	Search(ctx context.Context, params search.Params) (*search.Result, error)
	Count() (uint64, error)
}

// Downloads queues and tracks chapter downloads.
type Downloads interface {
	Submit(ctx context.Context, req download.Request, cb tasks.Callback) (string, error)
	Get(ctx context.Context, taskID string) (*domain.DownloadTask, error)
	List(ctx context.Context) ([]*domain.DownloadTask, error)
	Cancel(ctx context.Context, taskID string) error
	Pending() int
}

// Session opens books on the player and checkpoints their position.
type Session interface {
	Open(ctx context.Context, title string, chapter int) error
	Resume(ctx context.Context, title string) error
	Checkpoint(ctx context.Context) error
	Current() (title string, chapter int, ok bool)
}

// Player is the transport surface of the audio actor.
type Player interface {
	Play() error
	Pause() error
	SetSpeed(ratio float64) error
	SeekRelative(delta float64) error
	SetVolume(volume float64) error
	Sync(ctx context.Context) error
	State() player.Transport
}

// Progress reads and writes per-book resume records.
type Progress interface {
	Load(title string) (*domain.ProgressRecord, error)
	Save(title string, chapter *int, bookURL string, position *float64) error
}

// Services holds the components the handlers call. Player and Session are
// nil when audio output is disabled.
type Services struct {
	Library   Library
	Search    Searcher
	Downloads Downloads
	Session   Session
	Player    Player
	Progress  Progress
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services  *Services
	validator *validation.Validator
	router    chi.Router
	api       huma.API
	logger    *slog.Logger
	started   time.Time

	// onDownloaded is passed to every submitted task.
	onDownloaded tasks.Callback
}

// NewServer creates the router with all routes registered.
func NewServer(services *Services, cfg config.ServerConfig, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:  services,
		validator: validation.New(),
		router:    router,
		logger:    logger,
		started:   time.Now(),
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig("Audiody API", "1.0.0")
	humaConfig.Info.Description = "Local control API for the audiobook cache, downloads, and player."
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerLibraryRoutes()
	s.registerDownloadRoutes()
	s.registerPlayerRoutes()
	s.registerProgressRoutes()

	return s
}

// SetDownloadCallback sets the callback passed with every submitted download.
func (s *Server) SetDownloadCallback(cb tasks.Callback) {
	s.onDownloaded = cb
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(cfg config.ServerConfig) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// requestLogger logs each request at debug level and server errors at warn.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
