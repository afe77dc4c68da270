package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// PublicPrefix is where public_dir is mounted; "/" stays the API banner.
const PublicPrefix = "/app"

type Server struct {
	listenAddr string
	ginEngine  *gin.Engine
	inner      *http.Server
}

func NewServer(config *config.Config) (*Server, error) {
	gin.SetMode(getGinMode(config.Environment))
	r := gin.New()

	r.Use(logger.SetLogger(
		logger.WithUTC(true),
		logger.WithSkipPath([]string{"/healthz"}),
	))
	r.Use(gin.Recovery())

	if origins := config.AllowedOrigins(); len(origins) > 0 {
		r.Use(cors.New(corsConfig(origins, !config.DisableAuth)))
	}

	if config.PublicDir != "" {
		r.Use(static.Serve(PublicPrefix, static.LocalFile(config.PublicDir, false)))
	}

	r.Use(limitBody(config.MaxUploadSize))
	r.MaxMultipartMemory = config.MaxUploadSize

	listenAddr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return &Server{
		listenAddr: listenAddr,
		ginEngine:  r,
		inner: &http.Server{
			Handler:           r,
			Addr:              listenAddr,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func corsConfig(origins []string, withAPIKey bool) cors.Config {
	headers := []string{"Content-Type"}
	if withAPIKey {
		headers = append(headers, "X-API-Key")
	}

	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: headers,
		MaxAge:       5 * time.Minute,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// limitBody caps request bodies; reads past the limit fail with
// *http.MaxBytesError.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func (s *Server) Addr() string {
	return s.listenAddr
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Start blocks until the server stops; a graceful Stop returns nil.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.inner.Shutdown(ctx)
}

func getGinMode(env string) string {
	switch env {
	case "dev":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
