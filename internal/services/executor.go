// Package services – IntentExecutor
//
// This file implements IntentExecutor, which runs the action attached to a
// matched intent:
//
//   - WEBHOOK posts the conversation context as JSON to the intent URL with
//     a bounded timeout and returns the decoded response body
//   - INTERNAL moves the conversation to OPEN or CLOSED, optionally with an
//     assignee
//   - FORM returns the configured form definition for the reply generator
//
// Every execution bumps trigger_count and last_triggered first, then appends
// an IntentRun audit row. Failures of any kind are reported in Result and
// never surface as Go errors.
//
// Observability: Execute opens a span per run (intent id, action type) and
// records konsul_intent_executions_total and
// konsul_intent_execution_duration_seconds.

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

const (
	// IntentUserAgent identifies intent webhook calls to receivers.
	IntentUserAgent = "Konsul-Intent-Bot/1.0"

	// DefaultWebhookTimeout bounds one intent webhook round-trip.
	DefaultWebhookTimeout = 10 * time.Second

	maxWebhookResponseBytes = 1 << 20
	isoMillis               = "2006-01-02T15:04:05.000Z"
)

// ExecContext is the conversation state an intent runs against.
type ExecContext struct {
	Conversation *domain.Conversation
	Message      *domain.Message
	UserMessage  string
}

// Result is the outcome of one intent execution. Failures are reported here,
// never as a Go error.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// IntentExecutor runs the action of a matched intent.
type IntentExecutor struct {
	DB *gorm.DB
	// HTTP is used for WEBHOOK actions; http.DefaultClient when nil.
	HTTP *http.Client
	// Timeout bounds each WEBHOOK call; DefaultWebhookTimeout when zero.
	Timeout time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// NewIntentExecutor builds an executor with the given webhook timeout.
func NewIntentExecutor(db *gorm.DB, client *http.Client, timeout time.Duration) *IntentExecutor {
	return &IntentExecutor{DB: db, HTTP: client, Timeout: timeout, Now: time.Now}
}

func (e *IntentExecutor) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Execute records the trigger (trigger_count + 1, last_triggered = now) and
// then dispatches on the intent's action type. The counter is bumped even when
// the action fails. Network errors, bad configuration and unknown actions come
// back as a failed Result.
func (e *IntentExecutor) Execute(ctx context.Context, in *domain.Intent, ec ExecContext) Result {
	tr := otel.Tracer("services/IntentExecutor")
	ctx, span := tr.Start(ctx, "Execute",
		trace.WithAttributes(
			attribute.String("intent.id", in.ID),
			attribute.String("intent.action_type", string(in.ActionType)),
		),
	)
	defer span.End()

	start := time.Now()
	now := e.now()
	lg := zerolog.Ctx(ctx).With().Str("intent_id", in.ID).Str("action_type", string(in.ActionType)).Logger()

	if err := repo.RecordIntentTrigger(ctx, e.DB, in.ID, now); err != nil {
		lg.Error().Err(err).Msg("failed to record intent trigger")
	} else {
		in.TriggerCount++
		in.LastTriggered = &now
	}

	res := e.dispatch(ctx, in, ec, now)

	elapsed := time.Since(start)
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, res.Error)
		lg.Warn().Str("error", res.Error).Msg("intent action failed")
	}
	intentExecutions.WithLabelValues(string(in.ActionType), outcome).Inc()
	intentDuration.WithLabelValues(string(in.ActionType)).Observe(elapsed.Seconds())
	e.audit(ctx, in, ec, res, elapsed)

	return res
}

func (e *IntentExecutor) dispatch(ctx context.Context, in *domain.Intent, ec ExecContext, now time.Time) Result {
	cfg, err := domain.ParseActionConfig(in.ActionType, in.Payload)
	if err != nil {
		return failure("%v", err)
	}
	switch c := cfg.(type) {
	case domain.WebhookConfig:
		return e.webhook(ctx, in, c, ec, now)
	case domain.InternalConfig:
		return e.internal(ctx, c, ec)
	case domain.FormConfig:
		return form(c)
	}
	return failure("unsupported action type: %s", in.ActionType)
}

// audit appends an IntentRun row. Failures are logged only.
func (e *IntentExecutor) audit(ctx context.Context, in *domain.Intent, ec ExecContext, res Result, elapsed time.Duration) {
	run := &domain.IntentRun{
		ID:         uuid.NewString(),
		IntentID:   in.ID,
		ActionType: in.ActionType,
		Success:    res.Success,
		Error:      res.Error,
		DurationMS: elapsed.Milliseconds(),
	}
	if ec.Conversation != nil {
		run.ConversationID = ec.Conversation.ID
	}
	if ec.Message != nil {
		run.MessageID = ec.Message.ID
	}
	if err := repo.CreateIntentRun(ctx, e.DB, run); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("intent_id", in.ID).Msg("failed to record intent run")
	}
}

// webhook POSTs the conversation context merged with the payload's extra keys.
// Payload keys override the defaults.
func (e *IntentExecutor) webhook(ctx context.Context, in *domain.Intent, c domain.WebhookConfig, ec ExecContext, now time.Time) Result {
	target := strings.TrimSpace(in.ActionURL)
	if target == "" {
		return failure("%v", domain.ErrMissingActionURL)
	}

	body := map[string]any{
		"intentName":  in.Name,
		"userMessage": ec.UserMessage,
		"timestamp":   now.Format(isoMillis),
	}
	if conv := ec.Conversation; conv != nil {
		body["conversationId"] = conv.ID
		body["externalId"] = conv.ExternalID
		body["contactName"] = conv.ContactName
		body["contactEmail"] = conv.ContactEmail
	}
	if ec.Message != nil {
		body["messageId"] = ec.Message.ID
	}
	for k, v := range c.Extra {
		body[k] = v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return failure("encode webhook body: %v", err)
	}

	// The deadline covers connect, headers and reading the capped body.
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return failure("build webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", IntentUserAgent)

	client := e.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failure("webhook timeout after %s", timeout)
		}
		return failure("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	// Bodies of non-2xx responses still reach the reply generator as Data.
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	if err != nil && isTimeout(err) {
		return failure("webhook timeout after %s", timeout)
	}
	data := parseJSONOrEmpty(payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Success: false, Data: data, Error: fmt.Sprintf("webhook returned status %d", resp.StatusCode)}
	}
	return Result{Success: true, Data: data}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseJSONOrEmpty decodes a JSON response body, yielding {} when the body is
// empty or not JSON.
func parseJSONOrEmpty(b []byte) any {
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil || v == nil {
		return map[string]any{}
	}
	return v
}

func (e *IntentExecutor) internal(ctx context.Context, c domain.InternalConfig, ec ExecContext) Result {
	var (
		status   domain.ConversationStatus
		assignee *string
	)
	switch c.Action {
	case domain.InternalEscalate:
		status = domain.StatusOpen
	case domain.InternalClose:
		status = domain.StatusClosed
	case domain.InternalAssign:
		who, _ := c.Params["assignee"].(string)
		who = strings.TrimSpace(who)
		if who == "" {
			return failure("%s requires an assignee", domain.InternalAssign)
		}
		status, assignee = domain.StatusOpen, &who
	default:
		return failure("unknown internal action: %s", c.Action)
	}

	conv := ec.Conversation
	if conv == nil {
		return failure("%s requires a conversation", c.Action)
	}
	if err := repo.UpdateConversationStatus(ctx, e.DB, conv.ID, status, assignee); err != nil {
		return failure("%s: %v", c.Action, err)
	}
	conv.Status = status
	data := map[string]any{"action": c.Action, "status": string(status)}
	if assignee != nil {
		conv.AssignedTo = *assignee
		data["assignedTo"] = *assignee
	}
	return Result{Success: true, Data: data}
}

// form returns the descriptor for the chat UI to render. Nothing is sent.
func form(c domain.FormConfig) Result {
	data := map[string]any{
		"type":    "form",
		"fields":  c.Fields,
		"message": c.Message,
	}
	if c.WebhookURL != "" {
		data["webhookUrl"] = c.WebhookURL
	}
	return Result{Success: true, Data: data}
}
