package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/rentalwatch/api"
	"github.com/Domenick1991/rentalwatch/config"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Handlers are the view groups mounted under /views.
type Handlers struct {
	Bookings      *api.BookingHandler
	Notifications *api.NotificationHandler
}

// NewRouter builds the read-mostly status surface of the watcher.
func NewRouter(cfg config.HTTPConfig, h Handlers, log logger.ILogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors.New(corsConfig(cfg)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	views := r.Group("/views")
	if h.Bookings != nil {
		h.Bookings.Register(views.Group("/bookings"))
	}
	if h.Notifications != nil {
		h.Notifications.Register(views.Group("/notifications"))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "path": c.Request.URL.Path})
	})
	return r
}

func corsConfig(cfg config.HTTPConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return c
}

func requestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("took", time.Since(start)),
		)
	}
}

// Run serves handler on cfg.Address and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("status server listening", logger.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve http %s: %w", cfg.Address, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
