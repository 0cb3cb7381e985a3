// Package gemini wraps the Gemini API behind the model collaborator interface
// used by the extraction pipeline and the advisory agents.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the model used for extraction and chat.
const DefaultModel = "gemini-2.5-flash"

// Client is a thin wrapper over the GenAI SDK that sends a single text prompt
// and returns the completion text.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a Gemini client. Credentials are resolved from the environment
// (GEMINI_API_KEY or application default credentials).
func New(ctx context.Context, opts ...Option) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	c := &Client{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate sends the prompt as a single user turn and returns the response
// text. An empty completion is reported as an error so callers never have to
// distinguish "no answer" from "empty answer".
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}

	return text, nil
}
