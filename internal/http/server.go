package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run serves on address until ctx is cancelled, then drains for up to
// five seconds.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
