package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lamim/paperforge/internal/api"
	"github.com/lamim/paperforge/internal/config"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// CompletionOptions tunes a single completion
type CompletionOptions struct {
	JSON bool // Ask for JSON output when the model has use_json_mode set
}

// Completer sends chat messages to a model and returns the reply text
type Completer interface {
	Complete(ctx context.Context, messages []api.Message, opts CompletionOptions) (string, error)
}

// NewCompleter builds the completer for a model's provider
func NewCompleter(model config.ModelConfig, secrets *config.Secrets, client *api.Client) (Completer, error) {
	apiKey := ""
	if secrets != nil {
		apiKey = secrets.GetAPIKey(model.BaseURL)
	}

	switch model.Provider {
	case config.ProviderHTTP, "":
		if client == nil {
			return nil, errors.New("http provider requires an API client")
		}
		return &HTTPCompleter{client: client, model: model, apiKey: apiKey}, nil
	case config.ProviderOpenAI:
		return NewOpenAICompleter(model, apiKey), nil
	default:
		return nil, fmt.Errorf("provider %q has no completer", model.Provider)
	}
}

// HTTPCompleter talks to an OpenAI-compatible endpoint through api.Client
type HTTPCompleter struct {
	client *api.Client
	model  config.ModelConfig
	apiKey string
}

// Complete implements Completer
func (h *HTTPCompleter) Complete(ctx context.Context, messages []api.Message, opts CompletionOptions) (string, error) {
	model := h.model
	model.UseJSONMode = model.UseJSONMode && opts.JSON

	resp, err := h.client.ChatCompletion(ctx, model, h.apiKey, messages)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// OpenAICompleter uses the official openai-go SDK
type OpenAICompleter struct {
	model config.ModelConfig
	opts  []option.RequestOption
}

// NewOpenAICompleter creates a completer for the given model
func NewOpenAICompleter(model config.ModelConfig, apiKey string) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if model.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(model.BaseURL))
	}
	if model.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(model.MaxRetries))
	}
	if model.HTTPTimeoutSeconds > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(model.HTTPTimeoutSeconds)*time.Second))
	}
	return &OpenAICompleter{model: model, opts: opts}
}

// Complete implements Completer
func (o *OpenAICompleter) Complete(ctx context.Context, messages []api.Message, opts CompletionOptions) (string, error) {
	client := openai.NewClient(o.opts...)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case api.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case api.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model.ModelName),
		Messages:    msgs,
		Temperature: openai.Float(o.model.Temperature),
		TopP:        openai.Float(o.model.TopP),
		MaxTokens:   openai.Int(int64(o.model.MaxOutputTokens)),
	}
	if opts.JSON && o.model.UseJSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
