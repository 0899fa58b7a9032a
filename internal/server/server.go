package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KorsanSoftware/camview/internal/camview"
	"github.com/KorsanSoftware/camview/internal/config"
	"github.com/KorsanSoftware/camview/internal/events"
	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/KorsanSoftware/camview/internal/metrics"
	"github.com/KorsanSoftware/camview/internal/version"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	// View is the camera widget the API drives. Required.
	View *camview.CameraView

	// Settings persists camera settings applied through the API.
	// Optional; when nil, PATCH changes live only in memory.
	Settings *config.SettingsManager

	// PicturesDir and RecordingsDir receive captured media.
	PicturesDir   string
	RecordingsDir string

	// PrometheusHandler, when set, is mounted on GET /metrics without auth.
	PrometheusHandler http.Handler
}

// Server is the huma v2 API server over chi.
type Server struct {
	api        huma.API
	router     chi.Router
	httpServer *http.Server
	view       *camview.CameraView
	options    *Options
	logger     *slog.Logger
	unsubs     []func()
}

// NewServer creates the API server and registers all routes.
func NewServer(opts *Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	apiConfig := huma.DefaultConfig("CamView API", version.Version)
	apiConfig.Info.Description = "Camera widget control API for V4L2 devices"
	// Relative paths in the OpenAPI doc work with any host
	apiConfig.Servers = []*huma.Server{}

	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humachi.New(router, apiConfig)

	s := &Server{
		api:     api,
		router:  router,
		view:    opts.View,
		options: opts,
		logger:  logging.GetLogger("server"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	s.wireMetrics()

	return s
}

// wireMetrics forwards widget events into the Prometheus collectors.
func (s *Server) wireMetrics() {
	hub := s.view.Hub()
	s.unsubs = append(s.unsubs,
		hub.OnCameraOpened(func() { metrics.SetCameraOpen(true) }),
		hub.OnCameraClosed(func() { metrics.SetCameraOpen(false) }),
		hub.OnPictureTaken(func([]byte) { metrics.IncPicture() }),
		hub.OnCameraError(func(err error, severity events.Severity) {
			metrics.IncError(severity.String())
		}),
	)
}

// API returns the huma API instance, used by tests.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the underlying chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start starts the HTTP server on the specified address.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s.httpServer.ListenAndServe()
}

// Stop shuts down the server and detaches the metrics listeners.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{
			Body: HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{
			Body: VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerCameraRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Operations without security requirements skip auth
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string

		authHeader := ctx.Header("Authorization")
		if authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type", nil)
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			// SSE clients cannot set headers, allow a query fallback
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			s.unauthorized(ctx, "Authentication required", nil)
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 {
			s.unauthorized(ctx, "Invalid credentials format", nil)
			return
		}

		if parts[0] != username || parts[1] != password {
			s.unauthorized(ctx, "Invalid credentials", nil)
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, err error) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="CamView API"`)
	if err != nil {
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, err)
		return
	}
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
