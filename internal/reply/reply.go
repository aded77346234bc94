// Package reply produces the agent's answer to an inbound user message.
//
// Generators are tried in order by a Chain: the first one that returns
// non-empty text wins and a canned fallback guarantees that a reply is always
// produced. An LLM-backed generator (OpenAI Responses API) and a
// knowledge-retrieval generator over the agent's free-text knowledge are
// provided.
package reply

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// DefaultFallback is sent when no generator produced text.
const DefaultFallback = "Gracias por tu mensaje. Un miembro del equipo te responderá en breve."

// IntentOutcome is the result of an intent that fired for this message.
type IntentOutcome struct {
	Name    string
	Type    domain.ActionType
	Success bool
	Data    map[string]any
}

// FormMessage returns the prompt carried by a FORM result, if any.
func (o *IntentOutcome) FormMessage() string {
	if o == nil || o.Data == nil {
		return ""
	}
	if t, _ := o.Data["type"].(string); t != "form" {
		return ""
	}
	msg, _ := o.Data["message"].(string)
	return strings.TrimSpace(msg)
}

// Request is everything a generator may use to answer.
type Request struct {
	Agent        domain.Agent
	Conversation domain.Conversation
	// History is ordered oldest first and excludes UserMessage.
	History     []domain.Message
	UserMessage string
	Intent      *IntentOutcome
}

// Generator turns a Request into reply text. An empty string means "no answer"
// and lets the next generator in a Chain try.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Chain tries Generators in order.
type Chain struct {
	Generators []Generator
	Fallback   string
}

// NewChain drops nil generators.
func NewChain(gens ...Generator) *Chain {
	c := &Chain{Fallback: DefaultFallback}
	for _, g := range gens {
		if g != nil {
			c.Generators = append(c.Generators, g)
		}
	}
	return c
}

// Generate never returns an empty reply. Generator errors are logged and the
// chain moves on.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("reply/Chain").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("agent.id", req.Agent.ID)),
	)
	defer span.End()

	for i, g := range c.Generators {
		text, err := g.Generate(ctx, req)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("generator", i).Msg("reply generator failed")
			span.RecordError(err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			span.SetAttributes(attribute.Int("reply.generator", i))
			return text, nil
		}
	}

	span.SetAttributes(attribute.Int("reply.generator", -1))
	if msg := req.Intent.FormMessage(); msg != "" {
		return msg, nil
	}
	if c.Fallback != "" {
		return c.Fallback, nil
	}
	return DefaultFallback, nil
}
