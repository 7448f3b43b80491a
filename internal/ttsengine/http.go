package ttsengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// HTTPSynthesizer calls a TTS backend's synthesis endpoint over HTTP,
// reusing one *http.Client the way the teacher's LokutorTTS reuses one
// websocket connection behind a mutex.
type HTTPSynthesizer struct {
	apiKey string
	host   string
	client *http.Client

	mu sync.Mutex
}

// NewHTTPSynthesizer returns a Synthesizer targeting host with the given
// API key.
func NewHTTPSynthesizer(host, apiKey string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		apiKey: apiKey,
		host:   host,
		client: &http.Client{},
	}
}

func (s *HTTPSynthesizer) Name() string { return "http-tts" }

type synthesizeRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Synthesize posts text and lang to the configured endpoint and returns
// the raw MP3 body.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, lang Language) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(synthesizeRequest{Text: text, Lang: string(lang)})
	if err != nil {
		return nil, fmt.Errorf("ttsengine: encode request: %w", err)
	}

	u := url.URL{Scheme: "https", Host: s.host, Path: "/synthesize"}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ttsengine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ttsengine: synthesis backend returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
