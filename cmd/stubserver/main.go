package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookhaven/storefront/internal/stub"
	pkgconfig "github.com/bookhaven/storefront/pkg/config"
	"github.com/bookhaven/storefront/pkg/logger"
)

type serverConfig struct {
	Addr      string `env:"STUBSERVER_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret string `env:"STUBSERVER_JWT_SECRET" envDefault:"local-dev-secret"`
	Seed      bool   `env:"STUBSERVER_SEED" envDefault:"true"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("stub server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := &serverConfig{}
	if err := pkgconfig.Load(cfg); err != nil {
		return err
	}
	log := logger.New("stubserver", cfg.LogLevel)

	server := stub.NewServer(stub.NewStore(), log, cfg.JWTSecret)
	if cfg.Seed {
		server.Seed()
		log.Info("seeded demo catalog and accounts")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("stub bookstore API listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
