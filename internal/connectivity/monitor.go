package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
)

// ProbeFunc performs one health check. A nil return means the server
// answered, regardless of status semantics.
type ProbeFunc func(ctx context.Context) error

// Monitor owns the shared server-reachable flag. API calls feed it through
// MarkReachable/MarkUnreachable as a side effect of their outcome; while the
// state is unhealthy a periodic probe tries to get back online. No probing
// happens while Online, any successful call already confirms health.
//
// Two consecutive failures move Online to Offline (through Suspect); a
// single success from anywhere returns to Online.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	bus      *bus.Bus
	log      *zap.Logger

	mu       sync.Mutex
	state    State
	failures int
	probing  bool
}

func NewMonitor(cfg *config.Config, probe ProbeFunc, b *bus.Bus, log *zap.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: cfg.ProbeInterval.Duration,
		timeout:  cfg.ProbeTimeout.Duration,
		bus:      b,
		log:      log.Named("connectivity"),
		state:    StateOnline,
	}
}

// SetProbe installs the health check after construction. The client that
// implements the probe also needs the monitor as its sink, so one of the
// two is wired late.
func (m *Monitor) SetProbe(probe ProbeFunc) {
	m.mu.Lock()
	m.probe = probe
	m.mu.Unlock()
}

// State returns the current reachability state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reachable is the boolean flag the UI shell renders. Suspect already reads
// as unreachable so the indicator appears on the first failure.
func (m *Monitor) Reachable() bool {
	return m.State() == StateOnline
}

// MarkReachable records a successful server response. Resets the failure
// counter and returns to Online from any state.
func (m *Monitor) MarkReachable() {
	m.mu.Lock()
	m.failures = 0
	m.transitionLocked(StateOnline)
	m.mu.Unlock()
}

// MarkUnreachable records a failed request. The first failure moves to
// Suspect, the second and onward to Offline.
func (m *Monitor) MarkUnreachable() {
	m.mu.Lock()
	m.failures++
	if m.failures >= 2 {
		m.transitionLocked(StateOffline)
	} else {
		m.transitionLocked(StateSuspect)
	}
	m.mu.Unlock()
}

// transitionLocked applies a state change and publishes it. No-op when the
// target equals the current state or the edge is not in the table.
func (m *Monitor) transitionLocked(to State) {
	from := m.state
	if from == to || !canTransition(from, to) {
		return
	}
	m.state = to
	m.log.Info("connectivity changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	m.bus.Publish(bus.Event{
		Kind:      KindChanged,
		Timestamp: time.Now(),
		Payload:   Change{From: from, To: to, Reachable: to == StateOnline},
	})
}

// Run drives the probe loop until ctx is cancelled. Ticks while Online are
// no-ops, and a tick that lands while a probe is still in flight is dropped
// rather than stacking a second probe.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	probe := m.probe
	if m.state == StateOnline || m.probing || probe == nil {
		m.mu.Unlock()
		return
	}
	m.probing = true
	m.mu.Unlock()

	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := probe(probeCtx)
		cancel()

		m.mu.Lock()
		m.probing = false
		m.mu.Unlock()

		if err != nil {
			m.log.Debug("probe failed", zap.Error(err))
			m.MarkUnreachable()
			return
		}
		m.MarkReachable()
	}()
}
