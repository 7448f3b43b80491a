package intake

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
)

const validAlert = `<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>id.1</identifier>
  <sender>s@x</sender>
  <sent>2026-07-31T10:00:00+00:00</sent>
  <status>Test</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
</alert>`

func TestServeHTTPLinkTestAcksWithoutEnqueue(t *testing.T) {
	q := NewBoundedQueue(2)
	srv := New(Config{
		Parser: capxml.NewParser(false),
		Queue:  q,
		Ack:    capxml.NewAckGenerator("ack"),
		Strict: false,
		AckSender: "system@gateway",
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validAlert))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("expected application/xml content type, got %q", ct)
	}
	if _, ok := q.TryDequeue(); ok {
		t.Error("LinkTest should not be enqueued")
	}
}

func TestServeHTTPRejectsContentTypeInStrict(t *testing.T) {
	srv := New(Config{
		Parser: capxml.NewParser(true),
		Queue:  NewBoundedQueue(2),
		Ack:    capxml.NewAckGenerator("ack"),
		Strict: true,
	})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validAlert))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestServeHTTPBadXMLReturns400(t *testing.T) {
	srv := New(Config{
		Parser: capxml.NewParser(false),
		Queue:  NewBoundedQueue(2),
		Ack:    capxml.NewAckGenerator("ack"),
	})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not xml"))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServeHTTPFullQueueStillReturns200(t *testing.T) {
	q := NewBoundedQueue(1)
	alertXML := strings.Replace(validAlert, "<status>Test</status>", "<status>Actual</status>", 1)
	alertXML = strings.Replace(alertXML, "</scope>", "</scope><info><category>Safety</category><event>Flood</event><urgency>Unknown</urgency><severity>Unknown</severity><certainty>Unknown</certainty><effective>2026-07-31T10:00:00+00:00</effective><expires>2026-07-31T11:00:00+00:00</expires></info>", 1)

	srv := New(Config{
		Parser: capxml.NewParser(false),
		Queue:  q,
		Ack:    capxml.NewAckGenerator("ack"),
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(alertXML))
		req.Header.Set("Content-Type", "application/xml")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 even when queue full, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
}
