package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient completes through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(ProviderGemini)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model, retry: cfg.Retry}, nil
}

// Complete sends one prompt with an optional system instruction.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	// Gemini gets JSON mode only; the schema itself is enforced by the
	// caller's decoder.
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	return CallWithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
}
