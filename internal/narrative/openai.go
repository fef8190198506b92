package narrative

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ Narrator = (*OpenAI)(nil)

const systemPrompt = "You write short, supportive progress summaries for a wellness app. " +
	"Describe only the facts given. Do not give medical advice or diagnoses. " +
	"Use at most four sentences."

// ChatCompletionsService defines the chat completion call used by OpenAI.
// It is satisfied by the SDK client's Chat.Completions service.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI narrates reports with an OpenAI chat model.
type OpenAI struct {
	completions ChatCompletionsService
	model       openai.ChatModel
	maxTokens   int64
}

// NewOpenAI creates a narrator backed by the OpenAI API.
func NewOpenAI(apiKey, model string, maxTokens int) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAI(client.Chat.Completions, model, maxTokens)
}

func newOpenAI(svc ChatCompletionsService, model string, maxTokens int) *OpenAI {
	return &OpenAI{
		completions: svc,
		model:       openai.ChatModel(model),
		maxTokens:   int64(maxTokens),
	}
}

// Narrate sends the rendered report facts and returns the first choice.
func (o *OpenAI) Narrate(ctx context.Context, req Request) (string, error) {
	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		}),
		Model:               openai.F(o.model),
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Temperature:         openai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmpty
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the chat model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
