package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// ServerOpt is an option of the server
type ServerOpt func(cfg *serverCfg)

type serverCfg struct {
	wrap []func(http.Handler) http.Handler
}

// WithHandlerWrapper wraps the root handler, e.g to add tracing.
// Wrappers are applied in the order given so the last one is outermost
func WithHandlerWrapper(wrap func(http.Handler) http.Handler) ServerOpt {
	return func(cfg *serverCfg) {
		cfg.wrap = append(cfg.wrap, wrap)
	}
}

// StartServer start the server with setup router function.
// Blocks until ctx is done, then shuts the server down gracefully
func StartServer(ctx context.Context, port int, setup func(r Router), opts ...ServerOpt) error {
	cfg := serverCfg{}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := CreateRouter()
	setup(router)

	var handler http.Handler = router
	for _, wrap := range cfg.wrap {
		handler = wrap(handler)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Starting server on port %v", port)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return errors.Wrap(err, "Server failed")
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "Failed to shutdown server")
	}
	return nil
}
