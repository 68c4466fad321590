// Package answer composes model prompts from persona, context, history and
// question, and delegates to the language-model collaborator.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/llm"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/pkg/logger"
	"github.com/q360-insights/research-portal/pkg/metrics"
)

// basePersona is the fixed instruction preamble for every invocation.
const basePersona = `You are an expert Research Analyst (not an Interviewer). You have access to the COMPLETE dataset.
CRITICAL INSTRUCTIONS:
- Scan the ENTIRE text for counts.
- Cite specific quotes where helpful.
- If you cannot find info, state that.
- If asked for a count, you MUST scan the ENTIRE text to find EVERY instance.
- Do not estimate.
- List the specific quotes or participants if possible to verify your count.`

// DefaultTemperature is used when a session has not overridden it.
const DefaultTemperature = 0.2

// BuildPrompt renders the strict prompt layout: persona block, complete
// research data, conversation history (prior turns only), current question.
func BuildPrompt(contextText, question string, history []model.Turn, personaOverride string) string {
	persona := basePersona
	if personaOverride != "" {
		persona = fmt.Sprintf("%s\n\nADDITIONAL CONTEXT:\n%s", basePersona, personaOverride)
	}

	var historyText strings.Builder
	for _, turn := range history {
		role := "Research Analyst"
		if turn.Role == model.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&historyText, "%s: %s\n\n", role, turn.Content)
	}

	return fmt.Sprintf(`%s

=== COMPLETE RESEARCH DATA ===
%s

=== CONVERSATION HISTORY ===
%s
=== CURRENT USER QUESTION ===
%s
`, persona, contextText, historyText.String(), question)
}

// Generator produces answers for session questions.
type Generator struct {
	client llm.Client
	logger *logger.Logger
}

// NewGenerator creates a generator. A nil client is allowed: every call then
// fails with KindNotConfigured, which the presentation layer degrades to a
// visible message.
func NewGenerator(client llm.Client, log *logger.Logger) *Generator {
	return &Generator{
		client: client,
		logger: log,
	}
}

// Generate answers one question against the session context.
func (g *Generator) Generate(ctx context.Context, contextText, question string, history []model.Turn, personaOverride string, temperature float64) (*llm.CompletionResponse, error) {
	return g.generate(ctx, contextText, question, history, personaOverride, temperature, nil)
}

// GenerateStream answers one question, delivering tokens through callback as
// they arrive.
func (g *Generator) GenerateStream(ctx context.Context, contextText, question string, history []model.Turn, personaOverride string, temperature float64, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	return g.generate(ctx, contextText, question, history, personaOverride, temperature, callback)
}

func (g *Generator) generate(ctx context.Context, contextText, question string, history []model.Turn, personaOverride string, temperature float64, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	if g.client == nil {
		return nil, &Error{Kind: KindNotConfigured}
	}

	prompt := BuildPrompt(contextText, question, history, personaOverride)
	req := llm.PromptRequest("", prompt, temperature)

	start := time.Now()
	var resp *llm.CompletionResponse
	var err error
	if callback != nil {
		resp, err = g.client.CompleteStream(ctx, req, callback)
	} else {
		resp, err = g.client.Complete(ctx, req)
	}
	if err != nil {
		metrics.RecordLLMRequest(g.client.Name(), "error", time.Since(start).Seconds(), 0, 0)
		g.logger.Warn("model call failed",
			zap.String("provider", g.client.Name()),
			zap.Error(err),
		)
		return nil, &Error{Kind: KindModelCall, Err: err}
	}

	metrics.RecordLLMRequest(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp, nil
}
