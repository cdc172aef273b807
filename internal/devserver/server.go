// Package devserver keeps browser hot reload alive during development on a
// fixed, explicit port, separate from the kiosk server.
package devserver

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const ReloadPath = "/livereload"

type Server struct {
	port    int
	app     *fiber.App
	hub     *websocket.Hub
	watcher *Watcher
	logger  logger.ILogger
}

func New(port int, staticDir string, log logger.ILogger) *Server {
	hub := websocket.NewHub("livereload", log)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get(ReloadPath, websocket.Handler(hub))

	s := &Server{port: port, app: app, hub: hub, logger: log}
	s.watcher = NewWatcher(staticDir, 200*time.Millisecond, s.Reload, log)
	return s
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Reload tells every connected page to refresh.
func (s *Server) Reload(changed string) {
	frame, _ := json.Marshal(map[string]string{"type": "reload", "path": changed})
	s.logger.Debug("LiveReload", "Broadcasting reload", map[string]interface{}{"path": changed, "clients": s.hub.ClientCount()})
	s.hub.Broadcast(frame)
}

// Run serves the reload socket and watches for changes until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return s.watcher.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info("LiveReload", "Live reload listening", map[string]interface{}{"url": "ws://localhost:" + strconv.Itoa(s.port) + ReloadPath})
		return s.app.Listen(":" + strconv.Itoa(s.port))
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.app.Shutdown()
	})

	return g.Wait()
}
