package shutdown

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interrupt(t *testing.T) {
	t.Helper()
	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))
}

func waitCancelled(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by interrupt")
	}
}

func TestShutdownReleasesInReverseOrderOnce(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())

	var order []string
	m.Register(Func(func() { order = append(order, "camera") }))
	m.Register(Func(func() { order = append(order, "windows") }))

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"windows", "camera"}, order)
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestShutdownTimesOutSlowComponent(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())
	m.timeout = 10 * time.Millisecond

	block := make(chan struct{})
	defer close(block)

	released := false
	m.Register(Func(func() { released = true }))
	m.Register(Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, released)
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, logger.Nop())
	stop := m.Listen()
	defer stop()

	cancel()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)

	stop()
}

func TestInterruptExitsWhenPromptIsBlocked(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())
	m.grace = 20 * time.Millisecond
	exited := make(chan int, 1)
	m.exit = func(code int) { exited <- code }

	stop := m.Listen()
	defer stop()

	stdin, feed := io.Pipe()
	defer feed.Close()
	go func() {
		_, _ = prompt.New(stdin, io.Discard, 0).Params()
	}()

	interrupt(t)
	waitCancelled(t, m)

	select {
	case code := <-exited:
		assert.Equal(t, ExitInterrupted, code)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked prompt kept the process alive after interrupt")
	}
}

func TestInterruptDoesNotExitWhenFlowUnwinds(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())
	m.grace = 50 * time.Millisecond
	exited := make(chan int, 1)
	m.exit = func(code int) { exited <- code }

	stop := m.Listen()
	defer stop()

	interrupt(t)
	waitCancelled(t, m)
	m.Shutdown()

	select {
	case code := <-exited:
		t.Fatalf("unexpected exit with status %d", code)
	case <-time.After(4 * m.grace):
	}
}
