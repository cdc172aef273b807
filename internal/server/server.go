package server

import (
	"context"
	"path/filepath"

	"catalog-lens/internal/bootstrap"
	"catalog-lens/internal/config"
	"catalog-lens/internal/pkg/serverutils"
	"catalog-lens/internal/websocket"
	"catalog-lens/pkg/guard"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	// Initialize Fiber App
	app := fiber.New(fiber.Config{
		// Above the 5 MB upload ceiling so oversized files reach the
		// workflow and get its message.
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler:          serverutils.ErrorHandler,
		DisableStartupMessage: cfg.IsProduction(),
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	// The camera must never outlive the server.
	app.Hooks().OnShutdown(func() error {
		container.CaptureController.Shutdown()
		return nil
	})

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.container.Logger.Info("Server", "Kiosk server listening", map[string]interface{}{"addr": "http://localhost:" + s.cfg.App.Port})
		errCh <- s.app.Listen(":" + s.cfg.App.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	api := app.Group("/api")

	c.SessionController.RegisterRoutes(api, app)
	c.CaptureController.RegisterRoutes(api)

	if !cfg.IsProduction() {
		c.DebugController.RegisterRoutes(app)
	}

	app.Get("/ws/notices", websocket.Handler(c.NoticeHub))

	// Guarded SPA
	policy := guard.Policy{
		PrivilegedRole: cfg.Guard.PrivilegedRole,
		LimitedPrefix:  cfg.Guard.LimitedPrefix,
	}
	appRoutes := app.Group(cfg.Guard.AppRoot, serverutils.RouteGuard(policy, serverutils.CookieRole(c.Resolver), c.Logger))

	if cfg.App.StaticDir != "" {
		app.Static("/assets", filepath.Join(cfg.App.StaticDir, "assets"))
		index := filepath.Join(cfg.App.StaticDir, "index.html")
		appRoutes.Get("/*", func(ctx *fiber.Ctx) error {
			return ctx.SendFile(index)
		})
		app.Get(cfg.App.SignInPath, func(ctx *fiber.Ctx) error {
			return ctx.SendFile(index)
		})
	}
}
