package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

func anthropicParams(req *CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		}
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Temperature: anthropic.F(req.Temperature),
		Messages:    anthropic.F(messages),
	}
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// streamState accumulates a streamed message across events: text deltas into
// the content, input usage from message_start, output usage and stop reason
// from message_delta.
type streamState struct {
	content    string
	tokensIn   int
	tokensOut  int
	stopReason string
	index      int
}

func (s *streamState) apply(event anthropic.MessageStreamEvent, callback StreamCallback) error {
	switch event.Type {
	case anthropic.MessageStreamEventTypeMessageStart:
		s.tokensIn = int(event.Message.Usage.InputTokens)
	case anthropic.MessageStreamEventTypeContentBlockDelta:
		if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok && delta.Type == "text_delta" {
			token := delta.Text
			s.content += token
			if err := callback(token, s.index); err != nil {
				return err
			}
			s.index++
		}
	case anthropic.MessageStreamEventTypeMessageDelta:
		if delta, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
			s.stopReason = string(delta.StopReason)
		}
		s.tokensOut = int(event.Usage.OutputTokens)
	}
	return nil
}

// CompleteStream sends a streaming completion request.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	params := anthropicParams(req)
	stream := c.client.Messages.NewStreaming(ctx, params)

	var state streamState
	for stream.Next() {
		if err := state.apply(stream.Current(), callback); err != nil {
			return nil, err
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:    state.content,
		Model:      params.Model.Value,
		TokensIn:   state.tokensIn,
		TokensOut:  state.tokensOut,
		StopReason: state.stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
