package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"catalog-lens/internal/config"
	"catalog-lens/internal/controller"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/repository/memory"
	"catalog-lens/internal/service"
	"catalog-lens/internal/websocket"
	"catalog-lens/pkg/capture"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	CaptureController controller.ICaptureController
	DebugController   controller.IDebugController

	// Background Services (Exposed for main.go to run)
	NoticeConsumer service.INoticeConsumer

	// WebSockets & Notices
	NoticeHub *websocket.Hub

	Resolver *service.CredentialResolver
	Logger   *logger.ZapLogger

	closers []func() error
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	httpClient := &http.Client{Timeout: 30 * time.Second}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. Credential stores. Store A is durable; store B (cookies) is bound per
	// request by the controllers.
	durable, closeStore := NewDurableStore(cfg, sysLogger)
	resolver := service.NewCredentialResolver(sysLogger, durable)

	// 4. Services
	verifier := service.NewSessionVerifier(cfg.API.BaseURL, resolver, httpClient, sysLogger)
	searchService := service.NewCatalogSearchService(cfg.API.BaseURL, resolver, httpClient, sysLogger)

	noticeHub := websocket.NewHub("notices", sysLogger)
	noticePublisher := service.NewNoticePublisher(pubSub, sysLogger)
	noticeConsumer := service.NewNoticeConsumer(pubSub, noticeHub, sysLogger)

	devices := capture.NewStillDevices(cfg.Camera.FrameSource)
	newWorkflow := func() *capture.Workflow {
		return capture.NewWorkflow(capture.Options{
			Devices:     devices,
			OnSearch:    searchService.Search,
			IsSearching: searchService.IsSearching,
			Notifier:    noticePublisher,
			Logger:      sysLogger,
		})
	}

	// 5. Controllers
	return &Container{
		SessionController: controller.NewSessionController(resolver, verifier, durable, cfg.App.SignInPath, cfg.Credential.CookieSecure, sysLogger),
		CaptureController: controller.NewCaptureController(newWorkflow, searchService, resolver, durable, sysLogger),
		DebugController:   controller.NewDebugController(resolver, durable, sysLogger),

		NoticeConsumer: noticeConsumer,
		NoticeHub:      noticeHub,

		Resolver: resolver,
		Logger:   sysLogger,

		closers: []func() error{pubSub.Close, closeStore},
	}
}

// NewDurableStore opens store A as configured. The returned func releases it.
func NewDurableStore(cfg *config.Config, sysLogger logger.ILogger) (contract.CredentialStore, func() error) {
	noop := func() error { return nil }

	switch cfg.Credential.Backend {
	case "redis":
		opt, err := redis.ParseURL(cfg.Credential.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.Credential.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		return implementation.NewRedisStore(rdb, cfg.Credential.KeyPrefix), rdb.Close
	case "memory":
		return memory.NewCredentialStore("memory", 0), noop
	default:
		return implementation.NewFileStore(cfg.Credential.FilePath), noop
	}
}

// Close releases the event bus and the durable store.
func (c *Container) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
