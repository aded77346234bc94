package reply

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

const faq = `Nuestro horario de atención es de lunes a viernes de 9 a 18 horas.

Los envíos a todo el país demoran entre 3 y 5 días hábiles.
El costo de envío es gratis en compras mayores a 50 dólares.

| Plan | Precio |
|------|--------|
| Básico | 10 dólares al mes |
| Pro | 25 dólares al mes |`

func TestKnowledge_TopK(t *testing.T) {
	k := NewKnowledge()

	got := k.TopK(faq, "¿Cuál es el horario de atención?")
	if len(got) != 1 || !strings.Contains(got[0], "lunes a viernes") {
		t.Fatalf("horario lookup = %#v", got)
	}

	got = k.TopK(faq, "cuánto cuesta el plan pro al mes")
	if len(got) != 1 || got[0] != "Pro 25 dólares al mes" {
		t.Fatalf("table row lookup = %#v", got)
	}

	if got := k.TopK(faq, "zzz qqq"); len(got) != 0 {
		t.Fatalf("unrelated query should not match: %#v", got)
	}
	if got := k.TopK(faq, "   "); got != nil {
		t.Fatalf("blank query should not match")
	}
	if got := k.TopK("", "horario"); len(got) != 0 {
		t.Fatalf("empty knowledge should not match")
	}
}

func TestKnowledge_GenerateAppendsForm(t *testing.T) {
	req := Request{
		Agent:       domain.Agent{Knowledge: faq},
		UserMessage: "¿cuántos días demoran los envíos?",
		Intent: &IntentOutcome{Name: "lead", Type: domain.ActionForm, Success: true,
			Data: map[string]any{"type": "form", "message": "Déjanos tu correo."}},
	}
	out, err := NewKnowledge().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "3 y 5 días") || !strings.HasSuffix(out, "Déjanos tu correo.") {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	var calls []string
	gen := func(name, text string, err error) Generator {
		return GeneratorFunc(func(context.Context, Request) (string, error) {
			calls = append(calls, name)
			return text, err
		})
	}
	c := NewChain(gen("err", "x", errors.New("boom")), nil, gen("empty", "  ", nil), gen("ok", " hola ", nil), gen("never", "no", nil))

	out, err := c.Generate(context.Background(), Request{})
	if err != nil || out != "hola" {
		t.Fatalf("Generate = %q,%v", out, err)
	}
	if strings.Join(calls, ",") != "err,empty,ok" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestChain_Fallbacks(t *testing.T) {
	empty := GeneratorFunc(func(context.Context, Request) (string, error) { return "", nil })

	out, _ := NewChain(empty).Generate(context.Background(), Request{})
	if out != DefaultFallback {
		t.Fatalf("expected canned fallback, got %q", out)
	}

	form := &IntentOutcome{Data: map[string]any{"type": "form", "message": "Completa el formulario"}}
	out, _ = NewChain(empty).Generate(context.Background(), Request{Intent: form})
	if out != "Completa el formulario" {
		t.Fatalf("expected form message, got %q", out)
	}

	c := NewChain()
	c.Fallback = "custom"
	if out, _ := c.Generate(context.Background(), Request{}); out != "custom" {
		t.Fatalf("expected custom fallback, got %q", out)
	}
}

func TestIntentOutcome_FormMessage(t *testing.T) {
	var nilOutcome *IntentOutcome
	if nilOutcome.FormMessage() != "" {
		t.Fatalf("nil outcome should have no form message")
	}
	webhook := &IntentOutcome{Data: map[string]any{"message": "x"}}
	if webhook.FormMessage() != "" {
		t.Fatalf("non-form data should have no form message")
	}
}

func TestNewOpenAI_EmptyKey(t *testing.T) {
	if NewOpenAI(" ", "gpt-4o-mini", nil) != nil {
		t.Fatalf("empty key should disable the generator")
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"resp_1","object":"response","created_at":1,"status":"completed",
			"model":"gpt-4o-mini","output":[{"type":"message","id":"msg_1","status":"completed","role":"assistant",
			"content":[{"type":"output_text","text":"¡Hola! Abrimos a las 9.","annotations":[]}]}]}`)
	}))
	defer srv.Close()

	g := NewOpenAI("sk-test", "gpt-4o-mini", srv.Client(), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	req := Request{
		Agent:       domain.Agent{Name: "Luna", Instructions: "Sé breve.", Model: "gpt-4.1-mini"},
		History:     []domain.Message{{Role: domain.RoleUser, Content: "hola"}, {Role: domain.RoleAgent, Content: "¡Hola!"}},
		UserMessage: "¿a qué hora abren?",
	}
	out, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "¡Hola! Abrimos a las 9." {
		t.Fatalf("unexpected output %q", out)
	}
	if got["model"] != "gpt-4.1-mini" {
		t.Fatalf("agent model override not sent: %v", got["model"])
	}
	if ins, _ := got["instructions"].(string); !strings.HasPrefix(ins, "Sé breve.") {
		t.Fatalf("instructions = %q", ins)
	}
	if in, _ := got["input"].(string); !strings.Contains(in, "Asistente") || !strings.HasSuffix(in, "Cliente: ¿a qué hora abren?") {
		t.Fatalf("input = %q", in)
	}
}

func TestOpenAI_GenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewOpenAI("sk-bad", "gpt-4o-mini", srv.Client(), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if _, err := g.Generate(context.Background(), Request{UserMessage: "hola"}); err == nil {
		t.Fatalf("expected error on 401")
	}
}
