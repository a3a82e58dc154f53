package web

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/shiush/internal/offline"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the offline cache over HTTP
type Server struct {
	reg    *offline.Registration
	router *gin.Engine
	log    *log.Logger
}

// NewServer creates a new web server. A nil logger discards.
func NewServer(reg *offline.Registration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	s := &Server{
		reg:    reg,
		router: router,
		log:    logger,
	}

	// Control channel
	sw := router.Group("/__sw")
	{
		sw.POST("/message", s.handleMessage)
		sw.POST("/sync", s.handleSync)
		sw.GET("/events", s.handleEvents)
		sw.GET("/status", s.handleStatus)
		sw.GET("/caches", s.handleCaches)
	}

	// Everything else goes through the interceptor
	router.NoRoute(gin.WrapH(reg))

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Printf("web: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
