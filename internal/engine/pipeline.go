package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// DefaultFallbackMessage is used when a chatbot has no fallback configured.
const DefaultFallbackMessage = "Sorry, I didn't quite get that. Could you rephrase?"

// defaultAITimeout bounds the AI stage; a timeout is a stage failure, not a
// pipeline error.
const defaultAITimeout = 5 * time.Second

// pipelineResponses counts which stage produced the returned response.
var pipelineResponses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "engine_pipeline_responses_total",
		Help: "Responses produced by the processing pipeline, by winning stage.",
	},
	[]string{"stage"},
)

func init() {
	prometheus.MustRegister(pipelineResponses)
}

// AIResponder is the contract of the generative-AI stage. Implementations
// must return (nil, nil) for "no response, fall through" and reserve errors
// for conditions worth logging; either way the pipeline treats a missing
// result as a stage miss.
type AIResponder interface {
	Generate(ctx context.Context, message string, cfg domain.AIConfig, conv *domain.Conversation) (*Result, error)
}

// Pipeline runs the strict fallback chain flow → knowledge base → AI →
// default, stopping at the first stage that yields a result. A Pipeline is
// immutable after construction and safe for concurrent use.
type Pipeline struct {
	ai        AIResponder
	aiTimeout time.Duration
}

// NewPipeline constructs a Pipeline. ai may be nil, which disables the AI
// stage regardless of chatbot configuration; aiTimeout <= 0 selects the
// default bound.
func NewPipeline(ai AIResponder, aiTimeout time.Duration) *Pipeline {
	if aiTimeout <= 0 {
		aiTimeout = defaultAITimeout
	}
	return &Pipeline{ai: ai, aiTimeout: aiTimeout}
}

// Process turns one inbound message into exactly one Result. It never
// returns nil and never fails: individual stage panics are contained and
// treated as a miss, and the default-fallback stage is terminal.
//
// buttonID is the clicked quick-reply id for button events, empty for plain
// text messages.
func (p *Pipeline) Process(ctx context.Context, bot *domain.Chatbot, conv *domain.Conversation, message, buttonID string) *Result {
	tr := otel.Tracer("engine/Pipeline")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("chatbot.id", bot.ID),
			attribute.Int("flows", len(bot.Flows)),
			attribute.Int("kb.entries", len(bot.KnowledgeBase)),
		),
	)
	defer span.End()

	start := time.Now()
	ectx := &Context{Message: message, Conversation: conv}

	// 1) Flow stage: stored order, first active trigger match wins.
	if res := p.safeStage("flow", func() *Result {
		for i := range bot.Flows {
			f := &bot.Flows[i]
			if !f.IsActive {
				continue
			}
			if !MatchTrigger(f, ectx, buttonID) {
				continue
			}
			return ExecuteFlow(f, ectx)
		}
		return nil
	}); res != nil {
		return p.finish(span, "flow", res, start)
	}

	// 2) Knowledge-base stage.
	if res := p.safeStage("kb", func() *Result {
		m := RankKnowledgeBase(message, bot.KnowledgeBase)
		if m == nil {
			return nil
		}
		return &Result{Content: m.Entry.Answer, Confidence: m.Score}
	}); res != nil {
		return p.finish(span, "kb", res, start)
	}

	// 3) AI stage, bounded by its own timeout.
	if p.ai != nil && bot.AI.Enabled {
		if res := p.safeStage("ai", func() *Result {
			actx, cancel := context.WithTimeout(ctx, p.aiTimeout)
			defer cancel()
			r, err := p.ai.Generate(actx, message, bot.AI, conv)
			if err != nil {
				log.Warn().Err(err).Str("chatbot_id", bot.ID).Msg("ai stage failed")
				return nil
			}
			return r
		}); res != nil {
			return p.finish(span, "ai", res, start)
		}
	}

	// 4) Default fallback: terminal, never fails.
	fb := bot.FallbackMessage
	if fb == "" {
		fb = DefaultFallbackMessage
	}
	return p.finish(span, "fallback", &Result{Content: fb, Confidence: 0.1}, start)
}

// finish stamps timing metadata, records the winning stage, and annotates
// the span.
func (p *Pipeline) finish(span trace.Span, stage string, res *Result, start time.Time) *Result {
	res.ProcessingTime = time.Since(start)
	pipelineResponses.WithLabelValues(stage).Inc()
	span.SetAttributes(
		attribute.String("pipeline.stage", stage),
		attribute.Float64("pipeline.confidence", res.Confidence),
	)
	return res
}

// safeStage contains panics from a single stage so a broken flow graph or
// KB entry degrades to "no match" instead of failing the request.
func (p *Pipeline) safeStage(name string, fn func() *Result) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", name).Msg("pipeline stage panicked")
			res = nil
		}
	}()
	return fn()
}
