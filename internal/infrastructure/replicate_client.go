package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"
)

const (
	replicateBaseURL   = "https://api.replicate.com/v1"
	txt2imgModel       = "google/nano-banana"
	img2imgModel       = "google/nano-banana-pro"
	replicatePollEvery = 2 * time.Second
)

var ErrPredictionFailed = errors.New("prediction failed")

// ReplicateClient runs predictions against the Replicate HTTP API. It asks
// the API to hold the request open and falls back to polling.
type ReplicateClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
	pollEvery  time.Duration
}

var _ interfaces.ImageGenerator = (*ReplicateClient)(nil)

func NewReplicateClient(token string) *ReplicateClient {
	return &ReplicateClient{
		token:      token,
		baseURL:    replicateBaseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		pollEvery:  replicatePollEvery,
	}
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (c *ReplicateClient) Generate(ctx context.Context, req entities.GenerationRequest) (*entities.GenerationResult, error) {
	model, input := buildPredictionInput(req)

	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "wait")

	pred, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	for !finished(pred.Status) {
		if pred.URLs.Get == "" {
			return nil, fmt.Errorf("prediction %s: no poll url", pred.ID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollEvery):
		}
		pollReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, err
		}
		if pred, err = c.do(pollReq); err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %v: %w", pred.ID, pred.Status, pred.Error, ErrPredictionFailed)
	}
	imageURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return nil, fmt.Errorf("prediction %s: %w", pred.ID, err)
	}
	return &entities.GenerationResult{ImageURL: imageURL}, nil
}

func buildPredictionInput(req entities.GenerationRequest) (string, map[string]any) {
	ratio := req.AspectRatio
	if ratio == "" {
		ratio = entities.DefaultAspectRatio
	}
	if req.Mode == entities.ModeImg2Img {
		return img2imgModel, map[string]any{
			"prompt":              req.Prompt,
			"resolution":          "2K",
			"image_input":         req.ImageURLs,
			"output_format":       "jpg",
			"safety_filter_level": "block_low_and_above",
			"aspect_ratio":        ratio,
		}
	}
	return txt2imgModel, map[string]any{
		"prompt":        req.Prompt,
		"aspect_ratio":  ratio,
		"output_format": "jpg",
		"go_fast":       true,
	}
}

func (c *ReplicateClient) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read replicate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var pred prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return &pred, nil
}

func finished(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// firstOutputURL accepts both a single URL and a list of URLs.
func firstOutputURL(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", errors.New("prediction has no output url")
}
