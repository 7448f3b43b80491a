// Package capxml validates and decodes Common Alerting Protocol v1.2 XML
// bulletins into typed AlertEvent values, and renders Ack responses.
package capxml

import "time"

// Kind classifies a decoded CAP message.
type Kind string

const (
	KindLinkTest Kind = "LinkTest"
	KindAlert    Kind = "Alert"
	KindCancel   Kind = "Cancel"
	KindAck      Kind = "Ack"
)

// Reference identifies one CAP message a Cancel message refers to.
type Reference struct {
	Sender     string
	Identifier string
	Sent       time.Time
}

// AlertEvent is the normalised form of a CAP message handed from the
// intake server (C5) to the alert scheduler (C6).
type AlertEvent struct {
	Kind       Kind
	Identifier string
	Sender     string
	Sent       time.Time
	Raw        []byte

	// Alert-only fields.
	Language    string
	Effective   time.Time
	Expires     time.Time
	Description string

	// Cancel and Ack field.
	References []Reference
}

// Key uniquely identifies an AlertEvent for cancel matching and dedup.
type Key struct {
	Sender     string
	Identifier string
	Sent       time.Time
}

// Key returns the (sender, identifier, sent) triple identifying this event.
func (e AlertEvent) Key() Key {
	return Key{Sender: e.Sender, Identifier: e.Identifier, Sent: e.Sent}
}

// Matches reports whether a reference identifies e.
func (r Reference) Matches(e AlertEvent) bool {
	return r.Sender == e.Sender && r.Identifier == e.Identifier && r.Sent.Equal(e.Sent)
}
