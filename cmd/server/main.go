package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/utafrali/mobilebackend/internal/app"
	"github.com/utafrali/mobilebackend/internal/config"
	pkgconfig "github.com/utafrali/mobilebackend/pkg/config"
	"github.com/utafrali/mobilebackend/pkg/logger"
)

func main() {
	envFiles := flag.String("env-file", ".env", "comma-separated dotenv files; the process environment wins")
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(app.Version)
		return
	}
	if err := run(strings.Split(*envFiles, ",")); err != nil {
		slog.Error("mobile backend exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(envFiles []string) error {
	if err := pkgconfig.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("mobile-backend", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting mobile backend",
		slog.String("version", app.Version),
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until ctx is canceled and the servers have drained.
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}
	log.Info("mobile backend stopped")
	return nil
}
