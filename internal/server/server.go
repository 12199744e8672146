package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alvarorichard/Gostream/internal/util"
)

const shutdownTimeout = 10 * time.Second

// ListenAndServe serves h on addr until ctx is cancelled
func ListenAndServe(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		util.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}
