package reply

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// OpenAI generates replies with the Responses API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI returns nil when apiKey is empty.
func NewOpenAI(apiKey, model string, httpClient *http.Client, opts ...option.RequestOption) *OpenAI {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if httpClient != nil {
		base = append(base, option.WithHTTPClient(httpClient))
	}
	return &OpenAI{client: openai.NewClient(append(base, opts...)...), model: model}
}

// Generate sends the agent instructions plus recent history and returns the
// model's text output.
func (g *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	if g == nil {
		return "", nil
	}
	model := g.model
	if m := strings.TrimSpace(req.Agent.Model); m != "" {
		model = m
	}

	resp, err := g.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        model,
		Instructions: openai.String(instructions(req)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(transcript(req)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai responses: %w", err)
	}
	return resp.OutputText(), nil
}

func instructions(req Request) string {
	var b strings.Builder
	if s := strings.TrimSpace(req.Agent.Instructions); s != "" {
		b.WriteString(s)
	} else {
		fmt.Fprintf(&b, "Eres %s, un asistente de atención al cliente. Responde de forma breve y amable.", req.Agent.Name)
	}
	if k := strings.TrimSpace(req.Agent.Knowledge); k != "" {
		b.WriteString("\n\nInformación del negocio:\n")
		b.WriteString(k)
	}
	if req.Intent != nil {
		fmt.Fprintf(&b, "\n\nSe ejecutó la acción %q (éxito: %t).", req.Intent.Name, req.Intent.Success)
		if form := req.Intent.FormMessage(); form != "" {
			fmt.Fprintf(&b, " Pide al contacto que complete el formulario con este mensaje: %s", form)
		}
	}
	return b.String()
}

// transcript renders history as "role: content" lines ending with the new
// user message.
func transcript(req Request) string {
	var b strings.Builder
	for _, m := range req.History {
		who := "Cliente"
		if m.Role == domain.RoleAgent {
			who = "Asistente"
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", who, m.CreatedAt.UTC().Format(time.RFC3339), m.Content)
	}
	fmt.Fprintf(&b, "Cliente: %s", req.UserMessage)
	return b.String()
}
