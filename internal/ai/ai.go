// Package ai adapts an external generative-text provider (OpenAI chat
// completions) to the engine's AIResponder contract. It carries no
// algorithmic logic of its own: per-chatbot enablement, fallback policy,
// and confidence stamping live here, everything else is the provider's.
package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/engine"
)

// apologyMessage is returned at low confidence when the provider fails and
// the chatbot is not configured to fall back to rules.
const apologyMessage = "I'm having trouble answering right now. Please try again in a moment."

// successConfidence keeps AI answers below flow/KB certainty so the
// pipeline's priority ordering holds.
const successConfidence = 0.7

// historyLimit caps how many prior turns are replayed to the provider.
const historyLimit = 10

// ErrNoAPIKey indicates the responder was constructed without credentials.
var ErrNoAPIKey = errors.New("ai: missing API key")

// chatService is the minimal surface of the OpenAI chat-completions client.
// Tests substitute a mock; production uses the real client.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Responder implements engine.AIResponder on top of OpenAI.
type Responder struct {
	chat chatService
}

// NewResponder builds a Responder authenticated with apiKey.
func NewResponder(apiKey string) (*Responder, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Responder{chat: &cli.Chat.Completions}, nil
}

// Generate produces an AI response for the message, or nil to let the
// pipeline fall through.
//
// Policy:
//   - disabled config → nil immediately, no provider call
//   - provider failure (including context timeout) → nil when
//     FallbackToRules is set, otherwise a fixed apology at confidence 0.3
//   - success → provider text at confidence 0.7, aiGenerated=true
func (r *Responder) Generate(ctx context.Context, message string, cfg domain.AIConfig, conv *domain.Conversation) (*engine.Result, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	params := openai.ChatCompletionNewParams{
		Model:    model(cfg),
		Messages: buildMessages(message, cfg, conv),
	}
	if cfg.Temperature > 0 {
		params.Temperature = openai.Float(cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(cfg.MaxTokens))
	}

	resp, err := r.chat.New(ctx, params)
	if err != nil || resp == nil || len(resp.Choices) == 0 {
		if cfg.FallbackToRules {
			return nil, err
		}
		return &engine.Result{
			Content:     apologyMessage,
			Confidence:  0.3,
			AIGenerated: true,
		}, nil
	}

	return &engine.Result{
		Content:     resp.Choices[0].Message.Content,
		Confidence:  successConfidence,
		AIGenerated: true,
	}, nil
}

// model maps the configured model name onto the provider's identifier,
// defaulting to a small, cheap chat model.
func model(cfg domain.AIConfig) openai.ChatModel {
	if cfg.Model == "" {
		return openai.ChatModelGPT4oMini
	}
	return openai.ChatModel(cfg.Model)
}

// buildMessages assembles the completion transcript: optional system
// prompt, a bounded window of prior turns, then the current message.
func buildMessages(message string, cfg domain.AIConfig, conv *domain.Conversation) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, historyLimit+2)
	if cfg.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(cfg.SystemPrompt))
	}
	if conv != nil {
		history := conv.Messages
		if len(history) > historyLimit {
			history = history[len(history)-historyLimit:]
		}
		for _, m := range history {
			switch m.Type {
			case domain.MessageUser:
				msgs = append(msgs, openai.UserMessage(m.Content))
			case domain.MessageBot:
				msgs = append(msgs, openai.AssistantMessage(m.Content))
			}
		}
	}
	return append(msgs, openai.UserMessage(message))
}
