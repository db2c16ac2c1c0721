package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
)

func testMonitor(t *testing.T, probe ProbeFunc) (*Monitor, *bus.Bus) {
	t.Helper()
	cfg := config.Default()
	cfg.ProbeInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.ProbeTimeout = config.Duration{Duration: 50 * time.Millisecond}
	b := bus.New()
	return NewMonitor(cfg, probe, b, zap.NewNop()), b
}

func waitForState(t *testing.T, events <-chan bus.Event, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Payload.(Change).To == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached state %s", want)
		}
	}
}

func TestTwoFailuresGoOffline(t *testing.T) {
	m, b := testMonitor(t, nil)
	events, unsub := b.Subscribe(bus.NamespaceConnectivity, 8)
	defer unsub()

	m.MarkUnreachable()
	if m.State() != StateSuspect {
		t.Fatalf("one failure should be Suspect, got %s", m.State())
	}
	if m.Reachable() {
		t.Fatal("Suspect should already read as unreachable")
	}

	m.MarkUnreachable()
	if m.State() != StateOffline {
		t.Fatalf("two failures should be Offline, got %s", m.State())
	}

	waitForState(t, events, StateSuspect)
	waitForState(t, events, StateOffline)
}

func TestSingleSuccessRecovers(t *testing.T) {
	m, _ := testMonitor(t, nil)
	m.MarkUnreachable()
	m.MarkUnreachable()
	m.MarkUnreachable()

	m.MarkReachable()
	if m.State() != StateOnline {
		t.Fatalf("one success should return Online, got %s", m.State())
	}
	if !m.Reachable() {
		t.Fatal("expected reachable after recovery")
	}
}

func TestRepeatedFailuresPublishOnce(t *testing.T) {
	m, b := testMonitor(t, nil)
	events, unsub := b.Subscribe(bus.NamespaceConnectivity, 8)
	defer unsub()

	for i := 0; i < 5; i++ {
		m.MarkUnreachable()
	}

	var transitions []State
	timeout := time.After(100 * time.Millisecond)
drain:
	for {
		select {
		case evt := <-events:
			transitions = append(transitions, evt.Payload.(Change).To)
		case <-timeout:
			break drain
		}
	}
	if len(transitions) != 2 || transitions[0] != StateSuspect || transitions[1] != StateOffline {
		t.Fatalf("expected [suspect offline], got %v", transitions)
	}
}

func TestProbeLoopRecovers(t *testing.T) {
	var probes atomic.Int64
	m, b := testMonitor(t, func(ctx context.Context) error {
		probes.Add(1)
		return nil
	})
	events, unsub := b.Subscribe(bus.NamespaceConnectivity, 8)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.MarkUnreachable()
	m.MarkUnreachable()
	waitForState(t, events, StateOffline)
	waitForState(t, events, StateOnline)

	if probes.Load() == 0 {
		t.Fatal("probe never ran")
	}
}

func TestNoProbingWhileOnline(t *testing.T) {
	var probes atomic.Int64
	m, _ := testMonitor(t, func(ctx context.Context) error {
		probes.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	time.Sleep(80 * time.Millisecond)
	if probes.Load() != 0 {
		t.Fatalf("healthy state must not probe, got %d probes", probes.Load())
	}
}

func TestProbeDoesNotOverlap(t *testing.T) {
	release := make(chan struct{})
	var inFlight, peak atomic.Int64
	m, _ := testMonitor(t, func(ctx context.Context) error {
		cur := inFlight.Add(1)
		if cur > peak.Load() {
			peak.Store(cur)
		}
		<-release
		inFlight.Add(-1)
		return errors.New("still down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.MarkUnreachable()
	m.MarkUnreachable()
	go m.Run(ctx)

	time.Sleep(80 * time.Millisecond)
	close(release)

	if peak.Load() > 1 {
		t.Fatalf("probes overlapped, peak %d", peak.Load())
	}
}
