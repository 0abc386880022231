// Package app wires the transcription pipeline together: model handle
// lifecycle, provider chain construction, and the per-submission processing
// flow shared by all transports.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// defaultIdleWindow is how long a model handle may sit unused before the
// background sweeper releases it.
const defaultIdleWindow = 5 * time.Minute

// Factory builds a fresh transcription provider. Constructing the provider is
// what establishes the backend client, so the factory runs lazily on first
// use and again after each idle release.
type Factory func(ctx context.Context) (transcribe.Provider, error)

// ManagerOption is a functional option for configuring a [Manager].
type ManagerOption func(*Manager)

// WithIdleWindow sets the idle duration after which the handle is released.
// Default: 5m.
func WithIdleWindow(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleWindow = d }
}

// WithManagerMetrics attaches a metrics sink for handle accounting.
func WithManagerMetrics(met *observe.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = met }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager owns the lifecycle of a single lazily-created provider handle.
// The handle is created on first Acquire, reused across submissions, and
// dropped by a background sweeper once it has been idle for the configured
// window, so a dormant bot holds no live backend client.
//
// Acquire returns the provider by value copy of the interface; callers invoke
// it outside the manager's lock. Retry backoff in particular must never stall
// other submissions waiting to acquire.
//
// Manager is safe for concurrent use.
type Manager struct {
	name       string
	factory    Factory
	idleWindow time.Duration
	metrics    *observe.Metrics
	now        func() time.Time

	mu       sync.Mutex
	provider transcribe.Provider
	lastUsed time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a Manager for the named backend and starts its idle
// sweeper. Call Close to stop the sweeper and drop any live handle.
func NewManager(name string, factory Factory, opts ...ManagerOption) *Manager {
	m := &Manager{
		name:       name,
		factory:    factory,
		idleWindow: defaultIdleWindow,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.sweep()
	return m
}

// Name returns the backend name the manager was created for.
func (m *Manager) Name() string { return m.name }

// Acquire returns the live provider handle, creating it on first use. The
// returned provider is used outside the manager's lock; the manager only
// guards creation and release.
func (m *Manager) Acquire(ctx context.Context) (transcribe.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.provider == nil {
		p, err := m.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: create %s handle: %w", m.name, err)
		}
		m.provider = p
		if m.metrics != nil {
			m.metrics.ActiveHandles.Add(ctx, 1)
		}
		slog.Info("model handle created", "provider", m.name)
	}
	m.lastUsed = m.now()
	return m.provider, nil
}

// Release drops the live handle immediately, if any. Used on shutdown and by
// the idle sweeper.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

// releaseLocked drops the handle. Must be called with m.mu held.
func (m *Manager) releaseLocked() {
	if m.provider == nil {
		return
	}
	m.provider = nil
	if m.metrics != nil {
		m.metrics.ActiveHandles.Add(context.Background(), -1)
	}
	slog.Info("model handle released", "provider", m.name)
}

// Active reports whether a live handle currently exists.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider != nil
}

// Close stops the idle sweeper and drops any live handle.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
		m.Release()
	})
}

// sweep periodically drops the handle once it has been idle for the window.
// TryLock keeps the sweeper from queueing behind an in-flight Acquire: a
// contended lock means the handle is busy, so it cannot be idle.
func (m *Manager) sweep() {
	defer close(m.done)

	interval := m.idleWindow / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.mu.TryLock() {
				continue
			}
			if m.provider != nil && m.now().Sub(m.lastUsed) >= m.idleWindow {
				m.releaseLocked()
			}
			m.mu.Unlock()
		}
	}
}

// managed adapts a Manager into a transcribe.Provider so it composes with
// the retry and fallback wrappers. Each call acquires the current handle and
// invokes it outside the manager lock.
type managed struct {
	mgr *Manager
}

// Managed returns a transcribe.Provider view of mgr.
func Managed(mgr *Manager) transcribe.Provider {
	return &managed{mgr: mgr}
}

var _ transcribe.Provider = (*managed)(nil)

// Name implements transcribe.Provider.
func (p *managed) Name() string { return p.mgr.Name() }

// Transcribe implements transcribe.Provider. Handle creation failures are
// transport errors: nothing about the audio caused them.
func (p *managed) Transcribe(ctx context.Context, req transcribe.Request) (string, error) {
	provider, err := p.mgr.Acquire(ctx)
	if err != nil {
		return "", transcribe.NewError(transcribe.KindTransport, "acquire model handle", err)
	}
	return provider.Transcribe(ctx, req)
}
