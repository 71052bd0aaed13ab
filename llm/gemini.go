package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// rateLimitDelay is how long a quota response pauses before the single retry.
const rateLimitDelay = 15 * time.Second

// Gemini implements Provider against the Gemini generateContent REST API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client

	// sleep is swappable so tests do not wait out the rate-limit delay.
	sleep func(time.Duration)
}

// NewGemini creates a Gemini provider. An empty apiKey yields an unavailable
// provider rather than an error, matching the startup checks in cmd.
func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultGeminiEndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		sleep:    time.Sleep,
	}
}

// Name returns the provider name.
func (g *Gemini) Name() string { return "gemini" }

// Available checks if an API key is configured.
func (g *Gemini) Available() bool { return g.apiKey != "" }

// Complete sends the prompt. A quota/rate-limit response sleeps a fixed
// interval and retries once; a second limit surfaces as ErrRateLimited.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err == ErrRateLimited {
		g.sleep(rateLimitDelay)
		text, err = g.generate(ctx, prompt)
	}
	return text, err
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			if apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
				return "", ErrRateLimited
			}
			return "", fmt.Errorf("gemini error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini error (%d)", resp.StatusCode)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var out string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
