package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"campusmart/adapters/logger"
	"campusmart/api"
)

func main() {
	args, err := ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := args.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, syncLog, err := logger.New(args.Shared.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer syncLog()

	if err := run(args, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		syncLog()
		os.Exit(1)
	}
}

func run(args Args, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	server, err := api.NewServer(ctx, args.ServerConfig, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Warn("Fail to close server resources", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    args.ServerURL,
		Handler: server.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server is listening", zap.String("addr", args.ServerURL))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), args.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[main] Fail to shutdown http server, err=%w", err)
	}
	return <-errCh
}
