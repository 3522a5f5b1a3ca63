// Package capture is the boundary to files, cameras and windows: it turns
// them into image buffers and shows buffers back to the user.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"
	"gaussian-blur-lab/internal/timing"

	"gocv.io/x/gocv"
)

var (
	ErrImageUnreadable   = errors.New("image not found or unreadable")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrReadFailed        = errors.New("failed to read frame")
)

type ImageLoader struct {
	logger  logger.Logger
	tracker *timing.Tracker
}

func NewImageLoader(log logger.Logger, tracker *timing.Tracker) *ImageLoader {
	if tracker == nil {
		tracker = timing.NewTracker()
	}
	return &ImageLoader{logger: log, tracker: tracker}
}

// Load decodes the image at path as an 8-bit BGR buffer.
func (l *ImageLoader) Load(path string) (*safe.Mat, error) {
	ctx := l.tracker.StartTiming("load_image")
	defer l.tracker.EndTiming(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnreadable, path, err)
	}

	l.logger.Debug("ImageLoader", "image data read", map[string]interface{}{
		"path":       path,
		"size_bytes": len(data),
	})

	return l.LoadFromBytes(data, formatFromPath(path))
}

func (l *ImageLoader) LoadFromBytes(data []byte, format string) (*safe.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrImageUnreadable, format, err)
	}

	safeMat, err := safe.Wrap(mat, "loaded_image")
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrImageUnreadable, format, err)
	}

	l.logger.Info("ImageLoader", "image loaded successfully", map[string]interface{}{
		"width":    safeMat.Cols(),
		"height":   safeMat.Rows(),
		"channels": safeMat.Channels(),
		"format":   format,
	})

	return safeMat, nil
}

// Save writes m to path; the encoder is chosen from the extension.
func (l *ImageLoader) Save(path string, m *safe.Mat) error {
	if err := safe.ValidateMatForOperation(m, "IMWrite"); err != nil {
		return err
	}

	ctx := l.tracker.StartTiming("save_image")
	defer l.tracker.EndTiming(ctx)

	if ok := gocv.IMWrite(path, m.GetMat()); !ok {
		err := fmt.Errorf("failed to write image to %s", path)
		l.logger.Error("ImageSaver", err, map[string]interface{}{
			"format": formatFromPath(path),
		})
		return err
	}

	l.logger.Info("ImageSaver", "image saved", map[string]interface{}{
		"path":   path,
		"format": formatFromPath(path),
	})
	return nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tiff", ".tif":
		return "tiff"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".webp":
		return "webp"
	default:
		return "unknown"
	}
}
