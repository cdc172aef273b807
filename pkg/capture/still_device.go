package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// StillDevices is a capture device backed by image files: a single file, or
// a directory whose images are served in name order, one per frame. Only one
// stream may be held at a time.
type StillDevices struct {
	source string

	mu     sync.Mutex
	held   bool
	denied bool
}

func NewStillDevices(source string) *StillDevices {
	return &StillDevices{source: source}
}

// Deny makes subsequent acquisitions fail as if the user refused permission.
func (d *StillDevices) Deny(denied bool) {
	d.mu.Lock()
	d.denied = denied
	d.mu.Unlock()
}

func (d *StillDevices) GetUserMedia(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.denied {
		return nil, ErrCameraPermissionDenied
	}
	if d.source == "" {
		return nil, ErrCameraNotFound
	}
	frames, err := listFrames(d.source)
	if err != nil {
		return nil, err
	}
	if d.held {
		return nil, ErrCameraBusy
	}

	d.held = true
	s := &stillStream{frames: frames}
	s.track = &stillTrack{stop: func() {
		d.mu.Lock()
		d.held = false
		d.mu.Unlock()
		s.end()
	}}
	return s, nil
}

func listFrames(source string) ([]string, error) {
	info, err := os.Stat(source)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, source)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{source}, nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			frames = append(frames, filepath.Join(source, e.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrCameraNotFound, source)
	}
	sort.Strings(frames)
	return frames, nil
}

type stillTrack struct {
	once sync.Once
	stop func()
}

func (t *stillTrack) Stop() {
	t.once.Do(t.stop)
}

type stillStream struct {
	track  *stillTrack
	frames []string

	mu    sync.Mutex
	next  int
	ended bool
}

func (s *stillStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *stillStream) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

func (s *stillStream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return 0, 0
	}
	cfg, err := decodeConfig(s.frames[s.next%len(s.frames)])
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, errors.New("stream ended")
	}
	path := s.frames[s.next%len(s.frames)]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}
