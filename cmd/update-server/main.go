package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/G9000/tauri-update-server/internal/config"
	"github.com/G9000/tauri-update-server/internal/metrics"
	"github.com/G9000/tauri-update-server/internal/release"
	"github.com/G9000/tauri-update-server/internal/server"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func run(log *logrus.Logger, cfg *config.ServerConfig) error {
	log.Println("loading platform mapping...")
	mapping, err := config.LoadPlatformMapping(cfg.PlatformsFile)
	if err != nil {
		return err
	}

	if !cfg.DisableMetrics {
		log.Println("starting metrics exporter...")
		exporter, err := metrics.NewExporter(cfg)
		if err != nil {
			return err
		}
		defer exporter.StopMetricsExporter()
		defer exporter.Flush()
	}

	log.Println("setting up GitHub client...")
	if cfg.GitHubToken == "" {
		log.Warn("GITHUB_TOKEN is not set, using unauthenticated requests")
	}
	resolver := release.NewResolver(log, cfg.CreateGitHubClient(), cfg, mapping)

	log.Println("starting server...")
	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           server.New(log, resolver, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s (repository=%s)", srv.Addr, resolver.Repository())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Println("stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); errors.Is(err, context.DeadlineExceeded) {
		log.Println("closing server...")
		if err := srv.Close(); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	log.Println("server stopped!")
	return nil
}

func main() {
	cfg, err := config.NewServerConfigFromEnv()
	if err != nil {
		logrus.Fatal(err)
	}
	cfg.Version = version
	log := cfg.CreateLogger()
	log.Infof("starting update server (version=%s, stage=%s)", cfg.Version, cfg.Stage)
	if err := run(log, cfg); err != nil {
		log.Fatal(err)
	}
}
