package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"catalog-lens/internal/bootstrap"
	"catalog-lens/internal/config"
	"catalog-lens/internal/devserver"
	"catalog-lens/internal/server"
	"catalog-lens/internal/tracer"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer func() {
		if err := container.Close(); err != nil {
			log.Printf("[WARN] Shutdown: %v", err)
		}
		_ = container.Logger.Sync()
	}()

	// 3. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg, container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 4. Start Background Services
	if err := container.NoticeConsumer.Consume(gctx); err != nil {
		log.Fatalf("[FATAL] Failed to subscribe to notices: %v", err)
	}
	g.Go(func() error {
		container.NoticeHub.Run(gctx)
		return nil
	})

	if cfg.App.Environment == "development" {
		dev := devserver.New(cfg.App.LiveReloadPort, cfg.App.StaticDir, container.Logger)
		g.Go(func() error {
			return dev.Run(gctx)
		})
	}

	// 5. Run Server
	srv := server.New(cfg, container)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] %v", err)
	}
}
