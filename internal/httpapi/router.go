// Package httpapi serves the geocoder suggest endpoint over HTTP with Gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/internal/metrics"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Options wires the router to the engine and its collaborators. Reloader and
// Metrics are optional.
type Options struct {
	Engine   suggest.Suggester
	Reloader Reloader
	Metrics  *metrics.Metrics
	Server   config.ServerConfig
}

// NewRouter builds the Gin engine with all middleware and routes.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(RequestID())
	r.Use(Logger(logger.New("http")))
	r.Use(Recovery())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Gin())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	r.Use(corsFor(opts.Server.CORSOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := &handlers{
		engine:      opts.Engine,
		reloader:    opts.Reloader,
		defaultSize: opts.Server.DefaultSize,
		maxSize:     opts.Server.MaxSize,
		maxQueryLen: opts.Server.MaxQueryLen,
	}

	r.GET("/health", h.health)

	api := r.Group("/")
	if opts.Server.RateRPS > 0 {
		api.Use(NewRateLimiter(opts.Server.RateRPS, opts.Server.RateBurst).Handler())
	}
	api.GET("/geocoder", h.geocoder)
	api.GET("/stats", h.stats)
	api.POST("/admin/reload", AdminAuth(opts.Server.AdminToken), h.reload)

	return r
}

func corsFor(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	l := logger.New("http")
	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
