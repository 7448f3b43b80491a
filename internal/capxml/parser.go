package capxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// capNamespace is the CAP v1.2 namespace every <alert> root must declare.
const capNamespace = "urn:oasis:names:tc:emergency:cap:1.2"

// maxDecodeBytes bounds the input document size, and maxDepth bounds XML
// element nesting, as a defence against entity-expansion ("billion
// laughs") attacks against the decoder.
const (
	maxDecodeBytes = 1 << 20 // 1 MiB
	maxDepth       = 64
)

type wireAlert struct {
	XMLName    xml.Name  `xml:"alert"`
	Identifier string    `xml:"identifier"`
	Sender     string    `xml:"sender"`
	Sent       string    `xml:"sent"`
	Status     string    `xml:"status"`
	MsgType    string    `xml:"msgType"`
	Scope      string    `xml:"scope"`
	References string    `xml:"references"`
	Info       *wireInfo `xml:"info"`
}

type wireInfo struct {
	Category    string `xml:"category"`
	Event       string `xml:"event"`
	Urgency     string `xml:"urgency"`
	Severity    string `xml:"severity"`
	Certainty   string `xml:"certainty"`
	Language    string `xml:"language"`
	Effective   string `xml:"effective"`
	Expires     string `xml:"expires"`
	Description string `xml:"description"`
}

// Parser decodes and validates CAP v1.2 XML bulletins.
type Parser struct {
	// Strict toggles promotion of warning-level violations to errors, per
	// spec.md §4.1.
	Strict bool
	// OnWarning, if set, is called for every violation that is logged
	// rather than rejected (lenient mode only, or non-fatal in strict
	// mode where noted).
	OnWarning func(msg string)
}

// NewParser returns a Parser configured for the given strictness.
func NewParser(strict bool) *Parser {
	return &Parser{Strict: strict}
}

func (p *Parser) warn(format string, args ...any) {
	if p.OnWarning != nil {
		p.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Parse validates raw against CAP v1.2 and classifies it into a typed
// AlertEvent. raw is retained verbatim on the returned event for later
// rebroadcast on data subchannels.
func (p *Parser) Parse(raw []byte) (AlertEvent, error) {
	if int64(len(raw)) > maxDecodeBytes {
		return AlertEvent{}, newParseError("size", fmt.Errorf("document exceeds %d bytes", maxDecodeBytes))
	}

	if err := checkDepth(raw); err != nil {
		return AlertEvent{}, newParseError("depth", err)
	}

	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	dec.Strict = true
	// Reject external entities and DTD-defined expansions outright; CAP
	// bulletins never legitimately need either.
	dec.Entity = map[string]string{}

	var wa wireAlert
	if err := dec.Decode(&wa); err != nil {
		return AlertEvent{}, newParseError("xml", fmt.Errorf("%w: %v", ErrMalformedXML, err))
	}

	if wa.XMLName.Space != capNamespace {
		if p.Strict {
			return AlertEvent{}, newParseError("namespace", fmt.Errorf("%w: got %q", ErrNamespaceMismatch, wa.XMLName.Space))
		}
		p.warn("namespace mismatch: got %q, want %q", wa.XMLName.Space, capNamespace)
	}

	if err := requireFields(wa); err != nil {
		return AlertEvent{}, newParseError("missing-element", err)
	}

	sent, err := parseTimestamp(wa.Sent)
	if err != nil {
		return AlertEvent{}, newParseError("timestamp", err)
	}

	if p.Strict && wa.Scope != "Public" {
		return AlertEvent{}, newParseError("strict", fmt.Errorf("%w: scope=%q", ErrStrictViolation, wa.Scope))
	}
	if wa.Scope != "Public" {
		p.warn("scope is %q, not Public", wa.Scope)
	}

	base := AlertEvent{
		Identifier: wa.Identifier,
		Sender:     wa.Sender,
		Sent:       sent,
		Raw:        append([]byte(nil), raw...),
	}

	switch {
	case wa.MsgType == "Cancel":
		refs, err := parseReferences(wa.References)
		if err != nil {
			return AlertEvent{}, newParseError("references", err)
		}
		base.Kind = KindCancel
		base.References = refs
		return base, nil

	case wa.MsgType == "Ack":
		refs, err := parseReferences(wa.References)
		if err != nil {
			return AlertEvent{}, newParseError("references", err)
		}
		base.Kind = KindAck
		base.References = refs
		return base, nil

	case wa.MsgType == "Alert" && wa.Status == "Test":
		base.Kind = KindLinkTest
		return base, nil

	case wa.MsgType == "Alert" && wa.Status == "Actual":
		alert, err := p.parseInfo(wa)
		if err != nil {
			return AlertEvent{}, err
		}
		base.Kind = KindAlert
		base.Language = alert.language
		base.Effective = alert.effective
		base.Expires = alert.expires
		base.Description = alert.description
		if base.Expires.Before(base.Effective) || base.Expires.Equal(base.Effective) {
			return AlertEvent{}, newParseError("invariant", fmt.Errorf("expires (%s) must be after effective (%s)", base.Expires, base.Effective))
		}
		return base, nil

	default:
		return AlertEvent{}, newParseError("msgtype", fmt.Errorf("%w: unsupported status=%q msgType=%q", ErrMissingElement, wa.Status, wa.MsgType))
	}
}

type parsedInfo struct {
	language    string
	effective   time.Time
	expires     time.Time
	description string
}

// parseInfo validates and extracts the <info> block required for an
// Alert/Actual message, per spec.md §4.1.
func (p *Parser) parseInfo(wa wireAlert) (parsedInfo, error) {
	if wa.Info == nil {
		return parsedInfo{}, newParseError("missing-element", fmt.Errorf("%w: info", ErrMissingElement))
	}
	info := wa.Info

	missing := []string{}
	if info.Category == "" {
		missing = append(missing, "category")
	}
	if info.Event == "" {
		missing = append(missing, "event")
	}
	if info.Urgency == "" {
		missing = append(missing, "urgency")
	}
	if info.Severity == "" {
		missing = append(missing, "severity")
	}
	if info.Certainty == "" {
		missing = append(missing, "certainty")
	}
	if len(missing) > 0 {
		return parsedInfo{}, newParseError("missing-element", fmt.Errorf("%w: info/%s", ErrMissingElement, strings.Join(missing, ", ")))
	}

	if info.Language == "" {
		if p.Strict {
			return parsedInfo{}, newParseError("strict", fmt.Errorf("%w: info/language missing", ErrStrictViolation))
		}
		p.warn("info/language missing, warning audio falls back to en-US")
	}
	if info.Category != "Safety" {
		p.warn("info/category is %q, not Safety", info.Category)
	}
	if info.Urgency != "Unknown" {
		p.warn("info/urgency is %q, not Unknown", info.Urgency)
	}
	if info.Severity != "Unknown" {
		p.warn("info/severity is %q, not Unknown", info.Severity)
	}
	if info.Certainty != "Unknown" {
		p.warn("info/certainty is %q, not Unknown", info.Certainty)
	}

	if info.Effective == "" || info.Expires == "" {
		return parsedInfo{}, newParseError("missing-element", fmt.Errorf("%w: info/effective, info/expires", ErrMissingElement))
	}
	effective, err := parseTimestamp(info.Effective)
	if err != nil {
		return parsedInfo{}, newParseError("timestamp", err)
	}
	expires, err := parseTimestamp(info.Expires)
	if err != nil {
		return parsedInfo{}, newParseError("timestamp", err)
	}

	return parsedInfo{
		language:    info.Language,
		effective:   effective,
		expires:     expires,
		description: info.Description,
	}, nil
}

func requireFields(wa wireAlert) error {
	missing := []string{}
	if wa.Identifier == "" {
		missing = append(missing, "identifier")
	}
	if wa.Sender == "" {
		missing = append(missing, "sender")
	}
	if wa.Sent == "" {
		missing = append(missing, "sent")
	}
	if wa.Status == "" {
		missing = append(missing, "status")
	}
	if wa.MsgType == "" {
		missing = append(missing, "msgType")
	}
	if wa.Scope == "" {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingElement, strings.Join(missing, ", "))
	}
	return nil
}

func parseReferences(raw string) ([]Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty references", ErrBadReferences)
	}
	triples := strings.Fields(raw)
	refs := make([]Reference, 0, len(triples))
	for _, triple := range triples {
		parts := strings.SplitN(triple, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: malformed reference triple %q", ErrBadReferences, triple)
		}
		sent, err := parseTimestamp(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: reference %q: %v", ErrBadReferences, triple, err)
		}
		refs = append(refs, Reference{Sender: parts[0], Identifier: parts[1], Sent: sent})
	}
	return refs, nil
}

func checkDepth(raw []byte) error {
	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxDepth {
				return fmt.Errorf("%w: depth %d exceeds %d", ErrDepthExceeded, depth, maxDepth)
			}
		case xml.EndElement:
			depth--
		}
	}
}
