// Package llm provides a narrow abstraction over generative-text providers.
// The pipeline treats a provider as a pure prompt→text function with no
// session state across calls.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrNoProvider is returned when no provider is configured or available.
var ErrNoProvider = errors.New("no llm provider available")

// ErrRateLimited is returned when the provider reports quota exhaustion
// after the bounded retry.
var ErrRateLimited = errors.New("llm provider rate limited")

// Provider is a single generative-text backend.
type Provider interface {
	// Name returns the provider name for logging.
	Name() string

	// Available reports whether the provider is configured and usable.
	Available() bool

	// Complete sends a prompt and returns the raw text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client selects the first available provider.
type Client struct {
	providers []Provider
}

// NewClient creates a client trying providers in order of preference.
func NewClient(providers ...Provider) *Client {
	return &Client{providers: providers}
}

// Available reports whether any provider can serve requests.
func (c *Client) Available() bool {
	return c.provider() != nil
}

// Complete sends the prompt to the first available provider.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	p := c.provider()
	if p == nil {
		return "", ErrNoProvider
	}
	return p.Complete(ctx, prompt)
}

func (c *Client) provider() Provider {
	for _, p := range c.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// StripFences removes a markdown code-fence wrapper from a model reply,
// which providers add around JSON despite instructions not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
