package controller

import (
	"errors"
	"io"
	"sync"

	"catalog-lens/internal/dto"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/service"
	"catalog-lens/pkg/capture"

	"github.com/gofiber/fiber/v2"
)

type ICaptureController interface {
	RegisterRoutes(r fiber.Router)
	State(ctx *fiber.Ctx) error
	OpenCamera(ctx *fiber.Ctx) error
	CloseCamera(ctx *fiber.Ctx) error
	CapturePhoto(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	Retake(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	// Shutdown closes the live workflow and stops handing out new ones.
	Shutdown()
}

// WorkflowFactory builds a fresh workflow each time the previous one closes.
type WorkflowFactory func() *capture.Workflow

type captureController struct {
	newWorkflow WorkflowFactory
	search      *service.CatalogSearchService
	resolver    *service.CredentialResolver
	durable     contract.CredentialStore
	logger      logger.ILogger

	mu       sync.Mutex
	workflow *capture.Workflow
	shutdown bool
}

func NewCaptureController(
	newWorkflow WorkflowFactory,
	search *service.CatalogSearchService,
	resolver *service.CredentialResolver,
	durable contract.CredentialStore,
	log logger.ILogger,
) ICaptureController {
	return &captureController{
		newWorkflow: newWorkflow,
		search:      search,
		resolver:    resolver,
		durable:     durable,
		logger:      log,
	}
}

func (c *captureController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/capture")
	h.Get("/", c.State)
	h.Delete("/", c.Close)
	h.Post("/camera", c.OpenCamera)
	h.Delete("/camera", c.CloseCamera)
	h.Post("/photo", c.CapturePhoto)
	h.Post("/upload", c.Upload)
	h.Post("/retake", c.Retake)
	h.Post("/search", c.Search)
}

// current returns the live workflow, starting a new one when the last was
// closed. After Shutdown the closed workflow is returned as is.
func (c *captureController) current() *capture.Workflow {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.workflow != nil {
		select {
		case <-c.workflow.Done():
			if c.shutdown {
				return c.workflow
			}
		default:
			return c.workflow
		}
	}
	c.workflow = c.newWorkflow()
	c.logger.Debug("CaptureController", "Workflow started", map[string]interface{}{"workflow_id": c.workflow.ID()})
	return c.workflow
}

func (c *captureController) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	w := c.workflow
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}
}

func (c *captureController) State(ctx *fiber.Ctx) error {
	return c.respond(ctx, c.current(), "Capture state")
}

func (c *captureController) OpenCamera(ctx *fiber.Ctx) error {
	w := c.current()
	if err := w.OpenCamera(ctx.UserContext()); err != nil {
		return c.fail(ctx, err)
	}
	return c.respond(ctx, w, "Camera opened")
}

func (c *captureController) CloseCamera(ctx *fiber.Ctx) error {
	w := c.current()
	w.CloseCamera()
	return c.respond(ctx, w, "Camera closed")
}

func (c *captureController) CapturePhoto(ctx *fiber.Ctx) error {
	w := c.current()
	if err := w.CapturePhoto(ctx.UserContext()); err != nil {
		return c.fail(ctx, err)
	}
	return c.respond(ctx, w, "Photo captured")
}

func (c *captureController) Upload(ctx *fiber.Ctx) error {
	fh, err := ctx.FormFile("image")
	if err != nil {
		return c.fail(ctx, capture.ErrNoImage)
	}

	w := c.current()
	up := capture.Upload{
		Name:     fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
	if err := w.HandleFileUpload(ctx.UserContext(), up); err != nil {
		return c.fail(ctx, err)
	}
	return c.respond(ctx, w, "Image selected")
}

func (c *captureController) Retake(ctx *fiber.Ctx) error {
	w := c.current()
	w.Retake()
	return c.respond(ctx, w, "Ready to retake")
}

// Search runs with the request's session so a token held only in the cookie
// still reaches the backend.
func (c *captureController) Search(ctx *fiber.Ctx) error {
	w := c.current()
	tokens := c.resolver.WithStores(c.durable, implementation.NewCookieStore(implementation.NewFiberCookies(ctx), false))
	reqCtx := service.WithTokenSource(ctx.UserContext(), tokens)

	if err := w.Search(reqCtx); err != nil {
		return c.fail(ctx, err)
	}
	select {
	case <-w.Done():
		// Closed while the search was in flight; the result is not shown.
		return c.fail(ctx, capture.ErrClosed)
	default:
	}
	return c.respond(ctx, w, "Search finished")
}

func (c *captureController) Close(ctx *fiber.Ctx) error {
	c.mu.Lock()
	w := c.workflow
	c.mu.Unlock()
	if w != nil {
		w.Close()
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Photo search closed",
		"data":    nil,
	})
}

func (c *captureController) respond(ctx *fiber.Ctx, w *capture.Workflow, message string) error {
	res := dto.CaptureStateResponse{
		Snapshot:  w.Snapshot(),
		Searching: c.search.IsSearching(),
	}
	if out, ok := c.search.LastOutcome(); ok {
		res.LastSearch = &dto.SearchResultResponse{
			Filename:   out.Filename,
			Status:     out.Status,
			Results:    out.Results,
			Error:      out.Error,
			FinishedAt: out.FinishedAt,
		}
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": message,
		"data":    res,
	})
}

func (c *captureController) fail(ctx *fiber.Ctx, err error) error {
	code := captureStatus(err)
	if code >= fiber.StatusInternalServerError {
		c.logger.Error("CaptureController", "Capture request failed", map[string]interface{}{
			"path":  ctx.Path(),
			"error": err.Error(),
		})
	}
	return ctx.Status(code).JSON(fiber.Map{
		"success": false,
		"code":    code,
		"message": capture.UserMessage(err),
		"data":    dto.CaptureErrorResponse{Error: capture.Code(err)},
	})
}

// captureStatus maps workflow errors onto HTTP statuses. Anything unknown came
// from the search backend.
func captureStatus(err error) int {
	switch {
	case errors.Is(err, capture.ErrCameraUnsupported):
		return fiber.StatusNotImplemented
	case errors.Is(err, capture.ErrCameraPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, capture.ErrCameraNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, capture.ErrCameraBusy):
		return fiber.StatusConflict
	case errors.Is(err, capture.ErrCameraUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, capture.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, capture.ErrNotAnImage), errors.Is(err, capture.ErrNoImage):
		return fiber.StatusBadRequest
	case errors.Is(err, capture.ErrSearchInProgress),
		errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, capture.ErrOperationPending):
		return fiber.StatusConflict
	case errors.Is(err, capture.ErrClosed):
		return fiber.StatusGone
	default:
		return fiber.StatusBadGateway
	}
}
