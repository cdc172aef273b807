package capture

import (
	"context"
	"image"
	"sync"

	"github.com/google/uuid"
)

const FacingEnvironment = "environment"

// Constraints is the preferred capture configuration. Devices treat the
// resolution as ideal, not mandatory.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

var DefaultConstraints = Constraints{
	FacingMode: FacingEnvironment,
	Width:      1920,
	Height:     1080,
}

// Devices grants access to a capture device. Implementations report
// ErrCameraPermissionDenied, ErrCameraNotFound or ErrCameraBusy (possibly
// wrapped) so the workflow can tell the user what went wrong.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Track is one hardware track of a live stream.
type Track interface {
	Stop()
}

// Stream is a live video source.
type Stream interface {
	Tracks() []Track
	// Dimensions is the native frame size; 0x0 until the source has
	// produced its first frame.
	Dimensions() (width, height int)
	Frame() (image.Image, error)
}

// cameraSession owns a stream until release is called. release is safe to
// call more than once.
type cameraSession struct {
	id     string
	stream Stream
	once   sync.Once
}

func newCameraSession(stream Stream) *cameraSession {
	return &cameraSession{id: uuid.NewString(), stream: stream}
}

func (c *cameraSession) release() {
	c.once.Do(func() {
		stopStream(c.stream)
	})
}

func stopStream(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
