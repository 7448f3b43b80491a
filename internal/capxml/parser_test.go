package capxml

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validAlertXML(identifier, sent, effective, expires string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>` + identifier + `</identifier>
  <sender>rws@x</sender>
  <sent>` + sent + `</sent>
  <status>Actual</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
  <info>
    <category>Safety</category>
    <event>Flood</event>
    <urgency>Unknown</urgency>
    <severity>Unknown</severity>
    <certainty>Unknown</certainty>
    <language>nl-NL</language>
    <effective>` + effective + `</effective>
    <expires>` + expires + `</expires>
    <description>Test waarschuwing</description>
  </info>
</alert>`
}

func TestParseRoundTrip(t *testing.T) {
	const sent = "2026-07-31T10:00:00+00:00"
	const effective = "2026-07-31T10:00:00+00:00"
	const expires = "2026-07-31T11:00:00+00:00"
	raw := validAlertXML("nl.rws.1", sent, effective, expires)

	p := NewParser(false)
	ev, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Kind != KindAlert {
		t.Fatalf("expected KindAlert, got %v", ev.Kind)
	}
	if ev.Identifier != "nl.rws.1" {
		t.Errorf("identifier mismatch: %s", ev.Identifier)
	}
	if ev.Sender != "rws@x" {
		t.Errorf("sender mismatch: %s", ev.Sender)
	}
	if ev.Language != "nl-NL" {
		t.Errorf("language mismatch: %s", ev.Language)
	}
	if ev.Description != "Test waarschuwing" {
		t.Errorf("description mismatch: %s", ev.Description)
	}

	ack := NewAckGenerator("ack")
	ackXML := ack.Ack("system@x", ev.Sender, ev.Identifier, ev.Sent)

	ackEvent, err := p.Parse(ackXML)
	if err != nil {
		t.Fatalf("failed to parse generated ack: %v", err)
	}
	wantRefs := ev.Sender + "," + ev.Identifier + "," + FormatTimestamp(ev.Sent)
	if ackEvent.Kind != KindAck {
		t.Fatalf("expected KindAck, got %v", ackEvent.Kind)
	}
	if len(ackEvent.References) != 1 {
		t.Fatalf("expected 1 reference in ack, got %d", len(ackEvent.References))
	}
	r := ackEvent.References[0]
	if got := r.Sender + "," + r.Identifier + "," + FormatTimestamp(r.Sent); got != wantRefs {
		t.Errorf("ack references = %q, want %q", got, wantRefs)
	}
}

func TestTimestampRejection(t *testing.T) {
	bad := []string{
		"2026-07-31 10:00:00+00:00",
		"2026-07-31T10:00:00Z",
		"2026-07-31T10:00:00.000+00:00",
		"not-a-timestamp",
		"2026-07-31T10:00:00+0000",
	}
	for _, s := range bad {
		raw := validAlertXML("id.1", s, "2026-07-31T10:00:00+00:00", "2026-07-31T11:00:00+00:00")
		p := NewParser(false)
		_, err := p.Parse([]byte(raw))
		if err == nil {
			t.Errorf("expected error for sent=%q", s)
			continue
		}
		if !errors.Is(err, ErrBadTimestamp) {
			t.Errorf("expected ErrBadTimestamp for %q, got %v", s, err)
		}
	}
}

func TestStrictToggleScope(t *testing.T) {
	raw := strings.Replace(
		validAlertXML("id.1", "2026-07-31T10:00:00+00:00", "2026-07-31T10:00:00+00:00", "2026-07-31T11:00:00+00:00"),
		"<scope>Public</scope>", "<scope>Restricted</scope>", 1)

	strict := NewParser(true)
	if _, err := strict.Parse([]byte(raw)); err == nil {
		t.Fatal("expected error in strict mode for scope=Restricted")
	}

	var warned []string
	lenient := NewParser(false)
	lenient.OnWarning = func(msg string) { warned = append(warned, msg) }
	ev, err := lenient.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error in lenient mode: %v", err)
	}
	if ev.Kind != KindAlert {
		t.Fatalf("expected KindAlert, got %v", ev.Kind)
	}
	if len(warned) == 0 {
		t.Error("expected a warning to be logged for scope=Restricted")
	}
}

func TestLinkTest(t *testing.T) {
	raw := `<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>id.1</identifier>
  <sender>s@x</sender>
  <sent>2026-07-31T10:00:00+00:00</sent>
  <status>Test</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
</alert>`
	p := NewParser(true)
	ev, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != KindLinkTest {
		t.Fatalf("expected KindLinkTest, got %v", ev.Kind)
	}
}

func TestCancelReferences(t *testing.T) {
	raw := `<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>id.2</identifier>
  <sender>s@x</sender>
  <sent>2026-07-31T12:00:00+00:00</sent>
  <status>Actual</status>
  <msgType>Cancel</msgType>
  <scope>Public</scope>
  <references>rws@x,nl.rws.1,2026-07-31T10:00:00+00:00</references>
</alert>`
	p := NewParser(true)
	ev, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != KindCancel {
		t.Fatalf("expected KindCancel, got %v", ev.Kind)
	}
	if len(ev.References) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(ev.References))
	}
	want := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	if !ev.References[0].Sent.Equal(want) {
		t.Errorf("reference sent mismatch: %v", ev.References[0].Sent)
	}
}

func TestMissingElementFatal(t *testing.T) {
	raw := `<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <sender>s@x</sender>
  <sent>2026-07-31T10:00:00+00:00</sent>
  <status>Actual</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
</alert>`
	p := NewParser(false)
	_, err := p.Parse([]byte(raw))
	if !errors.Is(err, ErrMissingElement) {
		t.Fatalf("expected ErrMissingElement, got %v", err)
	}
}

func TestNamespaceMismatch(t *testing.T) {
	raw := `<alert xmlns="urn:example:not-cap">
  <identifier>id.1</identifier>
  <sender>s@x</sender>
  <sent>2026-07-31T10:00:00+00:00</sent>
  <status>Test</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
</alert>`
	strict := NewParser(true)
	if _, err := strict.Parse([]byte(raw)); !errors.Is(err, ErrNamespaceMismatch) {
		t.Fatalf("expected ErrNamespaceMismatch in strict mode, got %v", err)
	}

	lenient := NewParser(false)
	if _, err := lenient.Parse([]byte(raw)); err != nil {
		t.Fatalf("expected namespace mismatch to be a warning in lenient mode, got %v", err)
	}
}
