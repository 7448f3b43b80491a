package capxml

import (
	"fmt"
	"sync/atomic"
	"time"
)

// AckGenerator renders Ack envelopes in response to received CAP
// messages. It owns a monotonic counter that persists for the life of
// the process, per spec.md §4.1/§6.
type AckGenerator struct {
	prefix  string
	counter atomic.Uint64
	now     func() time.Time
}

// NewAckGenerator returns an AckGenerator using the given identifier
// prefix (from cap.identifier_prefix in the server config).
func NewAckGenerator(prefix string) *AckGenerator {
	return &AckGenerator{prefix: prefix, now: time.Now}
}

// ackTemplate is the XML shape of the response document, element order
// matching spec.md §6 exactly: identifier, sender, sent, status,
// msgType, scope, references.
const ackTemplate = `<alert xmlns="` + capNamespace + `">` +
	`<identifier>%s</identifier>` +
	`<sender>%s</sender>` +
	`<sent>%s</sent>` +
	`<status>Actual</status>` +
	`<msgType>Ack</msgType>` +
	`<scope>Public</scope>` +
	`<references>%s</references>` +
	`</alert>`

// Ack renders the ack envelope for a received (sender, identifier, sent)
// triple, using ackSender as the acknowledging system's own sender id.
func (g *AckGenerator) Ack(ackSender, receivedSender, receivedIdentifier string, receivedSent time.Time) []byte {
	n := g.counter.Add(1)
	identifier := fmt.Sprintf("%s.%d", g.prefix, n)
	references := fmt.Sprintf("%s,%s,%s", receivedSender, receivedIdentifier, FormatTimestamp(receivedSent))
	body := fmt.Sprintf(ackTemplate, identifier, ackSender, FormatTimestamp(g.now()), references)
	return []byte(body)
}
