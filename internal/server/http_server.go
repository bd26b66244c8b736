package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Run serves the router until ctx is cancelled, then drains in-flight
// requests before returning.
func Run(ctx context.Context, router *gin.Engine, port string) error {
	addr := ":8080"
	if port != "" {
		addr = ":" + port
	}
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
