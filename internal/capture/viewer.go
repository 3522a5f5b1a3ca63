package capture

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// NoKey is returned by PollKey when nothing was pressed.
const NoKey = -1

// Viewer renders buffers and reports key presses.
type Viewer interface {
	Show(title string, m *safe.Mat) error
	// PollKey waits up to delay for a key press; a zero delay waits forever.
	PollKey(delay time.Duration) int
	Close() error
}

// WindowViewer shows each title in its own OpenCV highgui window.
type WindowViewer struct {
	windows map[string]*gocv.Window
	order   []string
	logger  logger.Logger
	mu      sync.Mutex
}

func NewWindowViewer(log logger.Logger) *WindowViewer {
	return &WindowViewer{
		windows: make(map[string]*gocv.Window),
		logger:  log,
	}
}

func (v *WindowViewer) Show(title string, m *safe.Mat) error {
	if err := safe.ValidateMatForOperation(m, "IMShow"); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	w, ok := v.windows[title]
	if !ok {
		w = gocv.NewWindow(title)
		v.windows[title] = w
		v.order = append(v.order, title)
		v.logger.Debug("WindowViewer", "window opened", map[string]interface{}{
			"title": title,
		})
	}

	if err := w.IMShow(m.GetMat()); err != nil {
		return fmt.Errorf("show %q: %w", title, err)
	}
	return nil
}

func (v *WindowViewer) PollKey(delay time.Duration) int {
	v.mu.Lock()
	var w *gocv.Window
	if len(v.order) > 0 {
		w = v.windows[v.order[len(v.order)-1]]
	}
	v.mu.Unlock()

	if w == nil {
		time.Sleep(delay)
		return NoKey
	}

	ms := int(delay / time.Millisecond)
	if delay > 0 && ms == 0 {
		ms = 1
	}

	key := w.WaitKey(ms)
	if key < 0 {
		return NoKey
	}
	return key & 0xff
}

func (v *WindowViewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var firstErr error
	for _, title := range v.order {
		if err := v.windows[title].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close window %q: %w", title, err)
		}
		delete(v.windows, title)
	}
	v.order = nil
	return firstErr
}

// Shutdown lets the viewer be registered with the shutdown manager.
func (v *WindowViewer) Shutdown() {
	if err := v.Close(); err != nil {
		v.logger.Error("WindowViewer", err, nil)
	}
}

// HeadlessViewer discards frames and never reports a key press.
type HeadlessViewer struct {
	logger logger.Logger
	mu     sync.Mutex
	shown  map[string]int
}

func NewHeadlessViewer(log logger.Logger) *HeadlessViewer {
	return &HeadlessViewer{logger: log, shown: make(map[string]int)}
}

func (v *HeadlessViewer) Show(title string, m *safe.Mat) error {
	if err := safe.ValidateMatForOperation(m, "Show"); err != nil {
		return err
	}

	v.mu.Lock()
	v.shown[title]++
	n := v.shown[title]
	v.mu.Unlock()

	v.logger.Debug("HeadlessViewer", "frame discarded", map[string]interface{}{
		"title":  title,
		"width":  m.Cols(),
		"height": m.Rows(),
		"count":  n,
	})
	return nil
}

func (v *HeadlessViewer) PollKey(time.Duration) int {
	return NoKey
}

func (v *HeadlessViewer) Close() error {
	return nil
}

// Shown reports how many buffers were shown under title.
func (v *HeadlessViewer) Shown(title string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shown[title]
}

// SideBySide concatenates two equally tall buffers of the same type.
func SideBySide(left, right *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(left, "Hconcat"); err != nil {
		return nil, err
	}
	if err := safe.ValidateMatForOperation(right, "Hconcat"); err != nil {
		return nil, err
	}
	if left.Rows() != right.Rows() || left.Type() != right.Type() {
		return nil, fmt.Errorf("cannot place %dx%d beside %dx%d",
			left.Cols(), left.Rows(), right.Cols(), right.Rows())
	}

	dst := gocv.NewMat()
	if err := gocv.Hconcat(left.GetMat(), right.GetMat(), &dst); err != nil {
		dst.Close()
		return nil, fmt.Errorf("hconcat: %w", err)
	}
	return safe.Wrap(dst, "side_by_side")
}

var labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// Label draws text in the top-left corner of m, in place.
func Label(m *safe.Mat, text string) error {
	if err := safe.ValidateMatForOperation(m, "PutText"); err != nil {
		return err
	}

	mat := m.GetMat()
	if err := gocv.PutText(&mat, text, image.Pt(10, 25), gocv.FontHersheySimplex, 0.7, labelColor, 2); err != nil {
		return fmt.Errorf("label %q: %w", text, err)
	}
	return nil
}
