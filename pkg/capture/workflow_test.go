package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTrack struct{ stops atomic.Int32 }

func (t *fakeTrack) Stop() { t.stops.Add(1) }

type fakeStream struct {
	width, height int
	tracks        []*fakeTrack
}

func newFakeStream(w, h int) *fakeStream {
	return &fakeStream{width: w, height: h, tracks: []*fakeTrack{{}, {}}}
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Dimensions() (int, int) { return s.width, s.height }

func (s *fakeStream) Frame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for x := 0; x < s.width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	return img, nil
}

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if t.stops.Load() == 0 {
			return false
		}
	}
	return true
}

type fakeDevices struct {
	stream *fakeStream
	err    error
	// gate, when set, blocks acquisition until closed.
	gate chan struct{}
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if c.FacingMode != FacingEnvironment {
		return nil, errors.New("unexpected constraints")
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

func fixedClock() time.Time {
	return time.UnixMilli(1700000000123)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func uploadOf(name, mime string, data []byte, size int64) Upload {
	return Upload{
		Name:     name,
		Size:     size,
		MimeType: mime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestOpenAndCapture(t *testing.T) {
	ctx := context.Background()
	stream := newFakeStream(64, 48)
	w := NewWorkflow(Options{Devices: &fakeDevices{stream: stream}, Clock: fixedClock})

	require.NoError(t, w.OpenCamera(ctx))
	assert.Equal(t, StateCameraOpen, w.State())

	require.NoError(t, w.CapturePhoto(ctx))
	assert.Equal(t, StatePreviewReady, w.State())
	assert.True(t, stream.allStopped(), "capture must release the camera")

	img, ok := w.Image()
	require.True(t, ok)
	assert.Equal(t, "camera-1700000000123.jpg", img.Filename)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.True(t, strings.HasPrefix(img.Preview, "data:image/jpeg;base64,"))

	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())
}

func TestCaptureWithoutDimensionsIsNoop(t *testing.T) {
	ctx := context.Background()
	stream := newFakeStream(0, 0)
	w := NewWorkflow(Options{Devices: &fakeDevices{stream: stream}})

	require.NoError(t, w.OpenCamera(ctx))
	require.NoError(t, w.CapturePhoto(ctx))

	assert.Equal(t, StateCameraOpen, w.State())
	_, ok := w.Image()
	assert.False(t, ok)
	assert.False(t, stream.allStopped())

	w.CloseCamera()
	assert.True(t, stream.allStopped())
}

func TestCaptureRequiresOpenCamera(t *testing.T) {
	w := NewWorkflow(Options{})
	assert.ErrorIs(t, w.CapturePhoto(context.Background()), ErrInvalidState)
}

func TestCloseCameraIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stream := newFakeStream(10, 10)
	w := NewWorkflow(Options{Devices: &fakeDevices{stream: stream}})

	w.CloseCamera()
	assert.Equal(t, StateIdle, w.State())

	require.NoError(t, w.OpenCamera(ctx))
	w.CloseCamera()
	w.CloseCamera()

	assert.Equal(t, StateIdle, w.State())
	for _, tr := range stream.tracks {
		assert.Equal(t, int32(1), tr.stops.Load())
	}
}

func TestOpenCameraFailures(t *testing.T) {
	tests := []struct {
		name    string
		devices Devices
		want    *UserError
	}{
		{"unsupported runtime", nil, ErrCameraUnsupported},
		{"permission denied", &fakeDevices{err: ErrCameraPermissionDenied}, ErrCameraPermissionDenied},
		{"no device", &fakeDevices{err: ErrCameraNotFound}, ErrCameraNotFound},
		{"device busy", &fakeDevices{err: ErrCameraBusy}, ErrCameraBusy},
		{"wrapped busy", &fakeDevices{err: errors.Join(errors.New("v4l2"), ErrCameraBusy)}, ErrCameraBusy},
		{"unknown failure", &fakeDevices{err: errors.New("ioctl failed")}, ErrCameraUnavailable},
	}

	messages := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			w := NewWorkflow(Options{Devices: tt.devices, Notifier: notifier})

			err := w.OpenCamera(context.Background())

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateIdle, w.State())
			assert.Equal(t, tt.want.Message, UserMessage(err))
			assert.Equal(t, tt.want.Code, notifier.last().Code)
			messages[UserMessage(err)] = true
		})
	}
	assert.Len(t, messages, 5, "each capability failure has its own message")
}

func TestPermissionDeniedMessageIsSpecific(t *testing.T) {
	w := NewWorkflow(Options{Devices: &fakeDevices{err: ErrCameraPermissionDenied}})

	err := w.OpenCamera(context.Background())

	assert.Equal(t, StateIdle, w.State())
	assert.Contains(t, UserMessage(err), "permission")
	assert.NotEqual(t, UserMessage(errors.New("x")), UserMessage(err))
}

func TestOpenCameraOnlyFromIdle(t *testing.T) {
	ctx := context.Background()
	w := NewWorkflow(Options{Devices: &fakeDevices{stream: newFakeStream(4, 4)}})

	require.NoError(t, w.OpenCamera(ctx))
	assert.ErrorIs(t, w.OpenCamera(ctx), ErrInvalidState)
	w.Close()
}

func TestAcquisitionRacingCloseIsReleased(t *testing.T) {
	stream := newFakeStream(4, 4)
	devices := &fakeDevices{stream: stream, gate: make(chan struct{})}
	w := NewWorkflow(Options{Devices: devices})

	errCh := make(chan error, 1)
	go func() { errCh <- w.OpenCamera(context.Background()) }()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.acquiring
	}, time.Second, time.Millisecond)

	// A second acquisition while one is pending is refused.
	assert.ErrorIs(t, w.OpenCamera(context.Background()), ErrOperationPending)

	w.Close()
	close(devices.gate)

	assert.ErrorIs(t, <-errCh, ErrClosed)
	assert.True(t, stream.allStopped())
	assert.Equal(t, StateIdle, w.State())
}

func TestCloseCameraCancelsPendingAcquisition(t *testing.T) {
	stream := newFakeStream(4, 4)
	devices := &fakeDevices{stream: stream, gate: make(chan struct{})}
	w := NewWorkflow(Options{Devices: devices})

	errCh := make(chan error, 1)
	go func() { errCh <- w.OpenCamera(context.Background()) }()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.acquiring
	}, time.Second, time.Millisecond)

	w.CloseCamera()
	close(devices.gate)

	assert.ErrorIs(t, <-errCh, ErrInvalidState)
	assert.True(t, stream.allStopped())
	assert.Equal(t, StateIdle, w.State())
}

func TestUploadSizeCeiling(t *testing.T) {
	data := pngBytes(t)

	tests := []struct {
		name   string
		size   int64
		accept bool
	}{
		{"small", int64(len(data)), true},
		{"exactly the ceiling", MaxUploadSize, true},
		{"one byte over", MaxUploadSize + 1, false},
		{"six megabytes", 6 * 1000 * 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opened atomic.Bool
			up := uploadOf("shelf.png", "image/png", data, tt.size)
			open := up.Open
			up.Open = func() (io.ReadCloser, error) {
				opened.Store(true)
				return open()
			}
			w := NewWorkflow(Options{})

			err := w.HandleFileUpload(context.Background(), up)

			if tt.accept {
				require.NoError(t, err)
				assert.Equal(t, StatePreviewReady, w.State())
				return
			}
			assert.ErrorIs(t, err, ErrFileTooLarge)
			assert.False(t, opened.Load(), "oversized files are rejected before reading")
			snap := w.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			assert.Empty(t, snap.Preview)
		})
	}
}

func TestUploadUnderstatedSizeIsCaught(t *testing.T) {
	data := make([]byte, MaxUploadSize+10)
	copy(data, pngBytes(t))
	w := NewWorkflow(Options{})

	err := w.HandleFileUpload(context.Background(), uploadOf("big.png", "image/png", data, 100))

	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, StateIdle, w.State())
}

func TestUploadRejectsNonImages(t *testing.T) {
	w := NewWorkflow(Options{})
	ctx := context.Background()

	err := w.HandleFileUpload(ctx, uploadOf("notes.txt", "text/plain", []byte("hello"), 5))
	assert.ErrorIs(t, err, ErrNotAnImage)

	err = w.HandleFileUpload(ctx, uploadOf("fake.png", "image/png", []byte("plain text, not a png"), 21))
	assert.ErrorIs(t, err, ErrNotAnImage)

	// A real image without a declared type is still refused.
	data := pngBytes(t)
	err = w.HandleFileUpload(ctx, uploadOf("shelf.png", "", data, int64(len(data))))
	assert.ErrorIs(t, err, ErrNotAnImage)

	assert.Equal(t, StateIdle, w.State())
}

func TestUploadReplacesPreviousImage(t *testing.T) {
	ctx := context.Background()
	data := pngBytes(t)
	w := NewWorkflow(Options{})

	require.NoError(t, w.HandleFileUpload(ctx, uploadOf("first.png", "image/png", data, int64(len(data)))))
	require.NoError(t, w.HandleFileUpload(ctx, uploadOf("second.png", "image/png", data, int64(len(data)))))

	img, ok := w.Image()
	require.True(t, ok)
	assert.Equal(t, "second.png", img.Filename)
	assert.True(t, strings.HasPrefix(img.Preview, "data:image/png;base64,"))
}

func TestSearchRequiresImage(t *testing.T) {
	var calls atomic.Int32
	notifier := &recordingNotifier{}
	w := NewWorkflow(Options{
		Notifier: notifier,
		OnSearch: func(context.Context, CapturedImage) error {
			calls.Add(1)
			return nil
		},
	})

	err := w.Search(context.Background())

	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, ErrNoImage.Code, notifier.last().Code)
	assert.Equal(t, StateIdle, w.State())
}

func TestSearchKeepsImageForRetry(t *testing.T) {
	ctx := context.Background()
	data := pngBytes(t)
	var searching atomic.Bool
	var got []string

	w := NewWorkflow(Options{
		IsSearching: searching.Load,
		OnSearch: func(_ context.Context, img CapturedImage) error {
			got = append(got, img.Filename)
			return errors.New("backend unavailable")
		},
	})
	require.NoError(t, w.HandleFileUpload(ctx, uploadOf("shelf.png", "image/png", data, int64(len(data)))))

	assert.Error(t, w.Search(ctx))
	assert.Error(t, w.Search(ctx))
	assert.Equal(t, []string{"shelf.png", "shelf.png"}, got)
	assert.Equal(t, StatePreviewReady, w.State())

	searching.Store(true)
	assert.Equal(t, StateSearching, w.State())
	assert.ErrorIs(t, w.Search(ctx), ErrSearchInProgress)
	assert.Len(t, got, 2)
}

func TestRetakeAndClose(t *testing.T) {
	ctx := context.Background()
	data := pngBytes(t)
	w := NewWorkflow(Options{})
	require.NoError(t, w.HandleFileUpload(ctx, uploadOf("shelf.png", "image/png", data, int64(len(data)))))

	w.Retake()
	assert.Equal(t, StateIdle, w.State())
	_, ok := w.Image()
	assert.False(t, ok)

	require.NoError(t, w.HandleFileUpload(ctx, uploadOf("shelf.png", "image/png", data, int64(len(data)))))
	w.Close()
	w.Close()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
	snap := w.Snapshot()
	assert.True(t, snap.Closed)
	assert.Empty(t, snap.Preview)
	assert.ErrorIs(t, w.Search(ctx), ErrClosed)
	assert.ErrorIs(t, w.OpenCamera(ctx), ErrClosed)
}

func TestCloseReleasesOpenCamera(t *testing.T) {
	stream := newFakeStream(8, 8)
	w := NewWorkflow(Options{Devices: &fakeDevices{stream: stream}})
	require.NoError(t, w.OpenCamera(context.Background()))

	w.Close()

	assert.True(t, stream.allStopped())
}

func TestStillDevices(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngBytes(t), 0o600))

	d := NewStillDevices(dir)
	first := NewWorkflow(Options{Devices: d})
	second := NewWorkflow(Options{Devices: d})

	require.NoError(t, first.OpenCamera(ctx))
	assert.ErrorIs(t, second.OpenCamera(ctx), ErrCameraBusy)

	require.NoError(t, first.CapturePhoto(ctx))
	img, ok := first.Image()
	require.True(t, ok)
	assert.NotEmpty(t, img.Data)

	// Capture released the device.
	require.NoError(t, second.OpenCamera(ctx))
	second.Close()

	d.Deny(true)
	third := NewWorkflow(Options{Devices: d})
	assert.ErrorIs(t, third.OpenCamera(ctx), ErrCameraPermissionDenied)

	missing := NewWorkflow(Options{Devices: NewStillDevices("")})
	assert.ErrorIs(t, missing.OpenCamera(ctx), ErrCameraNotFound)
}
