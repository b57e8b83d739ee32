package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imagebot/internal/interfaces"
)

const googleTranslateURL = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator turns prompts into English through the public Google
// Translate endpoint. Language detection is left to Google.
type GoogleTranslator struct {
	endpoint   string
	target     string
	httpClient *http.Client
}

var _ interfaces.Translator = (*GoogleTranslator)(nil)

func NewGoogleTranslator() *GoogleTranslator {
	return &GoogleTranslator{
		endpoint:   googleTranslateURL,
		target:     "en",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", g.target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return parseTranslation(data)
}

// parseTranslation joins the translated segments of a response shaped like
// [[["hello","привет",...],...],...].
func parseTranslation(data []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil || len(payload) == 0 {
		return "", fmt.Errorf("decode translation: unexpected payload")
	}
	var segments [][]any
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("decode translation segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty translation")
	}
	return b.String(), nil
}
