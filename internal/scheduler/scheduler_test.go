package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
)

type fakeQueue struct {
	events []capxml.AlertEvent
}

func (q *fakeQueue) push(ev capxml.AlertEvent) { q.events = append(q.events, ev) }

func (q *fakeQueue) TryDequeue() (capxml.AlertEvent, bool) {
	if len(q.events) == 0 {
		return capxml.AlertEvent{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

type fakeSwitchover struct {
	calls []BroadcastState
	err   error
}

func (f *fakeSwitchover) Apply(ctx context.Context, desired BroadcastState, active []capxml.AlertEvent) error {
	f.calls = append(f.calls, desired)
	return f.err
}

type fakeDataWriter struct {
	writes int
}

func (f *fakeDataWriter) Write(subchannel string, framed []byte) error {
	f.writes++
	return nil
}

func alertEvent(id string, effective, expires time.Time) capxml.AlertEvent {
	return capxml.AlertEvent{
		Kind:       capxml.KindAlert,
		Identifier: id,
		Sender:     "sender@x",
		Sent:       effective,
		Raw:        []byte("<alert/>"),
		Effective:  effective,
		Expires:    expires,
	}
}

func TestTickActivatesAlreadyEffectiveAlert(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	q.push(alertEvent("a1", now.Add(-time.Minute), now.Add(time.Hour)))

	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	s.Tick(context.Background(), now)

	if len(s.State().Active()) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(s.State().Active()))
	}
	if len(sw.calls) != 1 || sw.calls[0] != Warning {
		t.Fatalf("expected a single Warning edge call, got %v", sw.calls)
	}
}

func TestTickHoldsFutureAlertPending(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	q.push(alertEvent("a1", now.Add(time.Hour), now.Add(2*time.Hour)))

	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	s.Tick(context.Background(), now)

	if len(s.State().Pending()) != 1 {
		t.Fatalf("expected 1 pending alert, got %d", len(s.State().Pending()))
	}
	if len(s.State().Active()) != 0 {
		t.Fatalf("expected 0 active alerts, got %d", len(s.State().Active()))
	}
	if len(sw.calls) != 0 {
		t.Fatalf("expected no edge call while still Quiet, got %v", sw.calls)
	}
}

func TestTickExpirySweepTriggersQuietEdge(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	s.state.addActive(alertEvent("a1", now.Add(-time.Hour), now.Add(-time.Minute)))
	s.state.LastBroadcastState = Warning

	s.Tick(context.Background(), now)

	if len(s.State().Active()) != 0 {
		t.Fatalf("expected active set empty after expiry, got %d", len(s.State().Active()))
	}
	if len(sw.calls) != 1 || sw.calls[0] != Quiet {
		t.Fatalf("expected a single Quiet edge call, got %v", sw.calls)
	}
}

func TestTickCancelRemovesMatchingAlert(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	sent := now.Add(-2 * time.Hour)
	active := capxml.AlertEvent{
		Kind: capxml.KindAlert, Identifier: "a1", Sender: "sender@x", Sent: sent,
		Effective: now.Add(-time.Hour), Expires: now.Add(time.Hour), Raw: []byte("<alert/>"),
	}
	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	s.state.addActive(active)
	s.state.LastBroadcastState = Warning

	q.push(capxml.AlertEvent{
		Kind: capxml.KindCancel, Identifier: "c1", Sender: "canceller@x", Sent: now,
		References: []capxml.Reference{{Sender: "sender@x", Identifier: "a1", Sent: sent}},
	})

	s.Tick(context.Background(), now)

	if len(s.State().Active()) != 0 {
		t.Fatalf("expected cancel to remove the active alert, got %d remaining", len(s.State().Active()))
	}
	if len(sw.calls) != 1 || sw.calls[0] != Quiet {
		t.Fatalf("expected Quiet edge call after cancel emptied active set, got %v", sw.calls)
	}
}

func TestTickRecomposeReinvokesSwitchoverWhileWarning(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	s.state.addActive(alertEvent("a1", now.Add(-time.Hour), now.Add(time.Hour)))
	s.state.LastBroadcastState = Warning

	q.push(alertEvent("a2", now.Add(-time.Minute), now.Add(2*time.Hour)))
	s.Tick(context.Background(), now)

	if len(s.State().Active()) != 2 {
		t.Fatalf("expected 2 active alerts, got %d", len(s.State().Active()))
	}
	if len(sw.calls) != 1 || sw.calls[0] != Warning {
		t.Fatalf("expected a re-invoked Warning edge call on composition change, got %v", sw.calls)
	}
}

func TestTickRebroadcastsWhileAlertsPresent(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{}
	dw := &fakeDataWriter{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	s := New(Config{Queue: q, Switchover: sw, DataWriter: dw, DataSubchannels: []string{"data0"}})
	s.state.addActive(alertEvent("a1", now.Add(-time.Hour), now.Add(time.Hour)))
	s.state.LastBroadcastState = Warning

	s.Tick(context.Background(), now)

	if dw.writes == 0 {
		t.Fatal("expected at least one data rebroadcast write")
	}
}

func TestTickSwitchoverFailureIsRetriedNextTick(t *testing.T) {
	q := &fakeQueue{}
	sw := &fakeSwitchover{err: context.DeadlineExceeded}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	s := New(Config{Queue: q, Switchover: sw, DataWriter: &fakeDataWriter{}})
	q.push(alertEvent("a1", now.Add(-time.Minute), now.Add(time.Hour)))
	s.Tick(context.Background(), now)

	if s.State().LastBroadcastState != Quiet {
		t.Fatalf("expected LastBroadcastState to remain Quiet after failed switchover, got %v", s.State().LastBroadcastState)
	}

	sw.err = nil
	s.Tick(context.Background(), now.Add(time.Second))
	if s.State().LastBroadcastState != Warning {
		t.Fatalf("expected switchover retry to succeed on next tick, got %v", s.State().LastBroadcastState)
	}
}
