package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient completes through the OpenAI Responses API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	retry  RetryPolicy
}

// NewOpenAIClient creates a client. The SDK's own retries are disabled;
// CallWithRetry owns the schedule.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(ProviderOpenAI)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model, retry: cfg.Retry}, nil
}

// Complete sends one instruction + user message and returns the output text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(req.MaxOutputTokens)
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "Response"
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
					Type:   "json_schema",
				},
			},
		}
	}

	return CallWithRetry(ctx, c.retry, func(ctx context.Context) (string, error) {
		resp, err := c.client.Responses.New(ctx, params)
		if err != nil {
			return "", err
		}
		return resp.OutputText(), nil
	})
}
