package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
)

type runner interface {
	Run(ctx context.Context) error
}

type httpServer interface {
	Start(addr string) error
	Stop() error
}

// serve runs the node and the HTTP server until ctx is canceled or either
// fails, then stops the server and runs cleanups in reverse order.
func serve(ctx context.Context, n runner, server httpServer, addr string, logger *slog.Logger, cleanups ...func()) error {
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop()
	})
	return g.Wait()
}
