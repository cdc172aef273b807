// Package capture implements the photo search workflow: acquiring the device
// camera, taking or uploading a single photo, and handing it to a search
// callback.
//
// The camera is a hardware resource. Whatever path leaves the CameraOpen
// state (capture, cancel, close, an acquisition racing a close) stops every
// track of the stream.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"catalog-lens/internal/pkg/logger"

	"github.com/google/uuid"
)

const module = "Capture"

type State string

const (
	StateIdle         State = "idle"
	StateCameraOpen   State = "camera_open"
	StatePreviewReady State = "preview_ready"
	StateSearching    State = "searching"
)

// SearchFunc runs the catalog search for an image. It belongs to the caller.
type SearchFunc func(ctx context.Context, img CapturedImage) error

// Notice is a user-facing message raised by the workflow.
type Notice struct {
	WorkflowID string `json:"workflowId"`
	Level      string `json:"level"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type Options struct {
	Devices Devices
	// OnSearch receives the current image. Required for Search.
	OnSearch SearchFunc
	// IsSearching reports whether the owner has a search in flight.
	IsSearching func() bool
	Notifier    Notifier
	Clock       func() time.Time
	Logger      logger.ILogger
}

// Snapshot is a read-only view of the workflow for rendering.
type Snapshot struct {
	WorkflowID string `json:"workflowId"`
	State      State  `json:"state"`
	CameraOpen bool   `json:"cameraOpen"`
	Filename   string `json:"filename,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Size       int    `json:"size,omitempty"`
	Preview    string `json:"preview,omitempty"`
	Closed     bool   `json:"closed"`
}

type Workflow struct {
	id   string
	opts Options

	mu     sync.Mutex
	state  State
	camera *cameraSession
	image  *CapturedImage

	// At most one outstanding acquisition or file read.
	acquiring bool
	reading   bool
	// generation is bumped by retake and close so that a pending
	// acquisition or read started before them is dropped.
	generation uint64

	closed bool
	done   chan struct{}
}

func NewWorkflow(opts Options) *Workflow {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Workflow{
		id:    uuid.NewString(),
		opts:  opts,
		state: StateIdle,
		done:  make(chan struct{}),
	}
}

func (w *Workflow) ID() string {
	return w.id
}

// Done is closed once Close has been called, telling the owner to dismiss.
func (w *Workflow) Done() <-chan struct{} {
	return w.done
}

func (w *Workflow) State() State {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()
	return w.present(state)
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	snap := Snapshot{
		WorkflowID: w.id,
		State:      w.state,
		CameraOpen: w.camera != nil,
		Closed:     w.closed,
	}
	if w.image != nil {
		snap.Filename = w.image.Filename
		snap.MimeType = w.image.MimeType
		snap.Size = len(w.image.Data)
		snap.Preview = w.image.Preview
	}
	w.mu.Unlock()

	snap.State = w.present(snap.State)
	return snap
}

// Image returns a copy of the current image, if any.
func (w *Workflow) Image() (CapturedImage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.image == nil {
		return CapturedImage{}, false
	}
	return *w.image, true
}

// present reports Searching while the owner's search flag is up. The stored
// state never changes for a search.
func (w *Workflow) present(state State) State {
	if state == StatePreviewReady && w.opts.IsSearching != nil && w.opts.IsSearching() {
		return StateSearching
	}
	return state
}

func (w *Workflow) OpenCamera(ctx context.Context) error {
	w.mu.Lock()
	if err := w.readyLocked(StateIdle); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.opts.Devices == nil {
		w.mu.Unlock()
		return w.fail(ctx, ErrCameraUnsupported)
	}
	w.acquiring = true
	gen := w.generation
	w.mu.Unlock()

	stream, err := w.opts.Devices.GetUserMedia(ctx, DefaultConstraints)

	w.mu.Lock()
	w.acquiring = false
	if err != nil {
		w.mu.Unlock()
		w.opts.Logger.Warn(module, "Camera acquisition failed", map[string]interface{}{
			"workflow_id": w.id,
			"error":       err.Error(),
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return w.fail(ctx, classifyCameraError(err))
	}
	if w.closed || gen != w.generation || w.state != StateIdle {
		closed := w.closed
		w.mu.Unlock()
		stopStream(stream)
		w.opts.Logger.Info(module, "Released camera acquired after cancel", map[string]interface{}{"workflow_id": w.id})
		if closed {
			return ErrClosed
		}
		return ErrInvalidState
	}
	w.camera = newCameraSession(stream)
	w.state = StateCameraOpen
	sessionID := w.camera.id
	w.mu.Unlock()

	w.opts.Logger.Info(module, "Camera opened", map[string]interface{}{
		"workflow_id":    w.id,
		"camera_session": sessionID,
	})
	return nil
}

// CapturePhoto encodes the current frame and releases the camera. If the
// source has not produced dimensions yet it does nothing.
func (w *Workflow) CapturePhoto(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.state != StateCameraOpen || w.camera == nil {
		w.mu.Unlock()
		return ErrInvalidState
	}

	width, height := w.camera.stream.Dimensions()
	if width <= 0 || height <= 0 {
		w.mu.Unlock()
		return nil
	}

	frame, err := w.camera.stream.Frame()
	if err != nil {
		w.mu.Unlock()
		w.opts.Logger.Error(module, "Failed to read camera frame", map[string]interface{}{
			"workflow_id": w.id,
			"error":       err.Error(),
		})
		return w.fail(ctx, ErrCameraUnavailable)
	}

	img, err := encodeFrame(frame, width, height, w.opts.Clock())
	if err != nil {
		w.mu.Unlock()
		w.opts.Logger.Error(module, "Failed to encode camera frame", map[string]interface{}{
			"workflow_id": w.id,
			"error":       err.Error(),
		})
		return w.fail(ctx, ErrCameraUnavailable)
	}

	w.releaseCameraLocked()
	w.image = img
	w.state = StatePreviewReady
	w.mu.Unlock()

	w.opts.Logger.Info(module, "Photo captured", map[string]interface{}{
		"workflow_id": w.id,
		"filename":    img.Filename,
		"bytes":       len(img.Data),
	})
	return nil
}

// CloseCamera stops the camera if one is open. It is a no-op otherwise. A
// pending acquisition is cancelled: its stream is released on arrival.
func (w *Workflow) CloseCamera() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.acquiring {
		w.generation++
	}
	w.releaseCameraLocked()
	if w.state == StateCameraOpen {
		w.state = StateIdle
	}
}

// HandleFileUpload validates and reads a user-selected file. The size ceiling
// is checked before anything is read.
func (w *Workflow) HandleFileUpload(ctx context.Context, up Upload) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.acquiring || w.reading {
		w.mu.Unlock()
		return ErrOperationPending
	}
	if w.state != StateIdle && w.state != StatePreviewReady {
		w.mu.Unlock()
		return ErrInvalidState
	}
	if up.Size > MaxUploadSize {
		w.mu.Unlock()
		return w.fail(ctx, ErrFileTooLarge)
	}
	if !isImageType(up.MimeType) || up.Open == nil {
		w.mu.Unlock()
		return w.fail(ctx, ErrNotAnImage)
	}
	w.reading = true
	gen := w.generation
	w.mu.Unlock()

	img, err := readUpload(up)
	if err == nil {
		err = ctx.Err()
	}

	w.mu.Lock()
	w.reading = false
	if err != nil {
		w.mu.Unlock()
		var ue *UserError
		if errors.As(err, &ue) {
			return w.fail(ctx, ue)
		}
		w.opts.Logger.Error(module, "Failed to read upload", map[string]interface{}{
			"workflow_id": w.id,
			"filename":    up.Name,
			"error":       err.Error(),
		})
		return err
	}
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if gen != w.generation {
		w.mu.Unlock()
		return ErrInvalidState
	}
	w.image = img
	w.state = StatePreviewReady
	w.mu.Unlock()

	w.opts.Logger.Info(module, "Upload accepted", map[string]interface{}{
		"workflow_id": w.id,
		"filename":    img.Filename,
		"bytes":       len(img.Data),
	})
	return nil
}

// Search hands the current image to the owner's search function. The image
// is kept whatever the outcome so the user can retry without recapturing.
func (w *Workflow) Search(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	var img CapturedImage
	hasImage := w.image != nil
	if hasImage {
		img = *w.image
	}
	w.mu.Unlock()

	if !hasImage {
		return w.fail(ctx, ErrNoImage)
	}
	if w.opts.IsSearching != nil && w.opts.IsSearching() {
		return ErrSearchInProgress
	}
	if w.opts.OnSearch == nil {
		return errors.New("capture: no search function configured")
	}
	return w.opts.OnSearch(ctx, img)
}

// Retake discards the current image and returns to Idle. The camera is not
// reopened.
func (w *Workflow) Retake() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.generation++
	w.releaseCameraLocked()
	w.image = nil
	if !w.closed {
		w.state = StateIdle
	}
}

// Close releases the camera, drops the image and signals Done. Calling it
// again does nothing.
func (w *Workflow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.generation++
	w.releaseCameraLocked()
	w.image = nil
	w.state = StateIdle
	close(w.done)
	w.mu.Unlock()

	w.opts.Logger.Info(module, "Workflow closed", map[string]interface{}{"workflow_id": w.id})
}

func (w *Workflow) readyLocked(want State) error {
	if w.closed {
		return ErrClosed
	}
	if w.acquiring || w.reading {
		return ErrOperationPending
	}
	if w.state != want {
		return ErrInvalidState
	}
	return nil
}

func (w *Workflow) releaseCameraLocked() {
	if w.camera == nil {
		return
	}
	w.camera.release()
	w.opts.Logger.Info(module, "Camera released", map[string]interface{}{
		"workflow_id":    w.id,
		"camera_session": w.camera.id,
	})
	w.camera = nil
}

// fail publishes the user-facing notice for err and returns it.
func (w *Workflow) fail(ctx context.Context, err *UserError) error {
	if w.opts.Notifier != nil {
		w.opts.Notifier.Notify(ctx, Notice{
			WorkflowID: w.id,
			Level:      "error",
			Code:       err.Code,
			Message:    err.Message,
		})
	}
	return err
}
