package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gaussian-blur-lab/internal/logger"
)

// ExitInterrupted is the exit status used when an interrupt cannot be
// honoured by unwinding the main flow.
const ExitInterrupted = 130

type Shutdownable interface {
	Shutdown()
}

// Func adapts a plain function to Shutdownable.
type Func func()

func (f Func) Shutdown() { f() }

// Manager cancels its context on SIGINT/SIGTERM and releases registered
// components in reverse registration order, once.
type Manager struct {
	components []Shutdownable
	logger     logger.Logger
	timeout    time.Duration
	grace      time.Duration
	exit       func(code int)
	mu         sync.Mutex
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		components: make([]Shutdownable, 0),
		logger:     log,
		timeout:    10 * time.Second,
		grace:      2 * time.Second,
		exit:       os.Exit,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *Manager) Register(component Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component)
}

// Listen cancels the context when an interrupt arrives. Components are not
// released here; the main flow unwinds and calls Shutdown itself. A flow
// blocked on the console or a key wait never sees the cancellation, so if
// Shutdown has not started within the grace period the process exits with
// ExitInterrupted. Only the first signal is caught; a second one gets the
// default behaviour. The returned function stops listening.
func (m *Manager) Listen() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			signal.Stop(sigChan)
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.cancel()
		case <-stop:
			return
		}

		select {
		case <-m.done:
		case <-stop:
		case <-time.After(m.grace):
			m.logger.Warning("ShutdownManager", "main flow did not stop, exiting", map[string]interface{}{
				"grace_ms": m.grace.Milliseconds(),
			})
			m.exit(ExitInterrupted)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(stop)
		})
	}
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return // Already shut down
	default:
		close(m.done)
	}

	m.logger.Debug("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})

	m.cancel()

	// Shutdown components in reverse order
	for i := len(m.components) - 1; i >= 0; i-- {
		component := m.components[i]

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			component.Shutdown()
		}()

		select {
		case <-finished:
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component_index": i,
			})
		}
	}

	m.components = nil
	m.logger.Debug("ShutdownManager", "shutdown sequence completed", nil)
}

func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
