package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxUploadSize is the hard ceiling for user-selected files: 5 MiB.
	MaxUploadSize int64 = 5 * 1024 * 1024

	JPEGQuality  = 90
	JPEGMimeType = "image/jpeg"
)

// CapturedImage is the single image the workflow holds, from the camera or
// from a file.
type CapturedImage struct {
	Data     []byte
	MimeType string
	Filename string
	// Preview is a data URI ready for an <img> tag.
	Preview string
}

// Upload describes a user-selected file. Open is called at most once, after
// the declared size and type have been accepted.
type Upload struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// encodeFrame draws frame onto a raster of the source's native size and
// encodes it as JPEG.
func encodeFrame(frame image.Image, width, height int, now time.Time) (*CapturedImage, error) {
	raster := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(raster, raster.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	data := buf.Bytes()
	return &CapturedImage{
		Data:     data,
		MimeType: JPEGMimeType,
		Filename: fmt.Sprintf("camera-%d.jpg", now.UnixMilli()),
		Preview:  dataURI(JPEGMimeType, data),
	}, nil
}

// readUpload reads the file and checks that the content really is an image.
// The declared size may lie, so the read is capped. The declared type has
// already been checked and is what the preview carries.
func readUpload(up Upload) (*CapturedImage, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	if !isImageType(mimetype.Detect(data).String()) {
		return nil, ErrNotAnImage
	}

	return &CapturedImage{
		Data:     data,
		MimeType: up.MimeType,
		Filename: up.Name,
		Preview:  dataURI(up.MimeType, data),
	}, nil
}

func isImageType(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
