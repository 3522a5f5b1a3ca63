package capture

import (
	"fmt"
	"sync"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// FrameSource yields successive frames until Read fails.
type FrameSource interface {
	Read() (*safe.Mat, error)
	Close() error
}

// Camera is a FrameSource backed by an OpenCV capture device.
type Camera struct {
	capture *gocv.VideoCapture
	index   int
	logger  logger.Logger
	once    sync.Once
}

func OpenCamera(index int, log logger.Logger) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrDeviceUnavailable, index, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrDeviceUnavailable, index)
	}

	log.Info("Camera", "capture device opened", map[string]interface{}{
		"index": index,
	})

	return &Camera{capture: vc, index: index, logger: log}, nil
}

func (c *Camera) Read() (*safe.Mat, error) {
	frame := gocv.NewMat()
	if ok := c.capture.Read(&frame); !ok {
		frame.Close()
		return nil, fmt.Errorf("%w: camera %d", ErrReadFailed, c.index)
	}

	m, err := safe.Wrap(frame, "frame")
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrReadFailed, c.index, err)
	}
	return m, nil
}

// Close releases the device. Later calls are no-ops.
func (c *Camera) Close() error {
	var err error
	c.once.Do(func() {
		err = c.capture.Close()
		c.logger.Info("Camera", "capture device released", map[string]interface{}{
			"index": c.index,
		})
	})
	return err
}

// Shutdown lets the camera be registered with the shutdown manager.
func (c *Camera) Shutdown() {
	if err := c.Close(); err != nil {
		c.logger.Error("Camera", err, nil)
	}
}
