// Package services – IntentService
//
// This file implements IntentService, the dashboard-facing CRUD for an
// agent's intents. It validates trigger patterns and action payloads,
// enforces case-folded name uniqueness per agent, toggles intents, lists the
// audit trail of executions and runs dry-run detection against the agent's
// enabled intents using the shared Matcher.
//
// Observability: public methods are OpenTelemetry-instrumented with agent
// and intent identifiers.

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

// IntentInput carries the writable intent fields. ActionType defaults to
// WEBHOOK; Enabled nil defaults to true on create and keeps the current value
// on update.
type IntentInput struct {
	Name        string
	Description string
	Trigger     string
	ActionType  domain.ActionType
	ActionURL   string
	Payload     json.RawMessage
	Enabled     *bool
}

// IntentService manages an agent's intents and runs dry-run matches.
type IntentService struct {
	DB      *gorm.DB
	Matcher *Matcher

	// NameMaxLen caps intent names by rune length.
	NameMaxLen int
}

// NewIntentService constructs an IntentService sharing m for detection.
func NewIntentService(db *gorm.DB, m *Matcher) *IntentService {
	if m == nil {
		m = NewMatcher()
	}
	return &IntentService{DB: db, Matcher: m, NameMaxLen: 120}
}

// Create validates in and stores a new intent for the agent.
func (s *IntentService) Create(ctx context.Context, workspaceID, agentID string, in IntentInput) (*domain.Intent, error) {
	tr := otel.Tracer("services/IntentService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("agent.id", agentID)))
	defer span.End()

	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	it := &domain.Intent{AgentID: agentID, Enabled: in.Enabled == nil || *in.Enabled}
	if err := s.apply(it, in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, agentID, "", it.Name); err != nil {
		return nil, err
	}
	if err := repo.CreateIntent(ctx, s.DB, it); err != nil {
		return nil, err
	}
	return it, nil
}

// List returns the agent's intents in matching order.
func (s *IntentService) List(ctx context.Context, workspaceID, agentID string) ([]domain.Intent, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	return repo.ListIntents(ctx, s.DB, agentID)
}

// Get loads a single intent.
func (s *IntentService) Get(ctx context.Context, workspaceID, agentID, intentID string) (*domain.Intent, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	return s.get(ctx, agentID, intentID)
}

func (s *IntentService) get(ctx context.Context, agentID, intentID string) (*domain.Intent, error) {
	it, err := repo.GetIntent(ctx, s.DB, agentID, intentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrIntentNotFound
	}
	return it, err
}

// Update replaces the editable fields. Trigger statistics are preserved.
func (s *IntentService) Update(ctx context.Context, workspaceID, agentID, intentID string, in IntentInput) (*domain.Intent, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	it, err := s.get(ctx, agentID, intentID)
	if err != nil {
		return nil, err
	}
	if in.Enabled != nil {
		it.Enabled = *in.Enabled
	}
	if err := s.apply(it, in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, agentID, it.ID, it.Name); err != nil {
		return nil, err
	}
	if err := repo.UpdateIntent(ctx, s.DB, it); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return s.get(ctx, agentID, intentID)
}

// Toggle flips Enabled and returns the updated intent.
func (s *IntentService) Toggle(ctx context.Context, workspaceID, agentID, intentID string) (*domain.Intent, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	it, err := s.get(ctx, agentID, intentID)
	if err != nil {
		return nil, err
	}
	if err := repo.SetIntentEnabled(ctx, s.DB, agentID, intentID, !it.Enabled); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return s.get(ctx, agentID, intentID)
}

// Delete soft-deletes an intent.
func (s *IntentService) Delete(ctx context.Context, workspaceID, agentID, intentID string) error {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return err
	}
	err := repo.DeleteIntent(ctx, s.DB, agentID, intentID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrIntentNotFound
	}
	return err
}

// Detect runs the matcher over the agent's intents without executing or
// counting anything. It returns nil when no enabled intent matches.
func (s *IntentService) Detect(ctx context.Context, workspaceID, agentID, message string) (*domain.Intent, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	intents, err := repo.ListEnabledIntents(ctx, s.DB, agentID)
	if err != nil {
		return nil, err
	}
	return s.Matcher.DetectIntent(ctx, message, intents), nil
}

// Runs returns the most recent executions of an intent.
func (s *IntentService) Runs(ctx context.Context, workspaceID, agentID, intentID string, limit int) ([]domain.IntentRun, error) {
	if _, err := s.Get(ctx, workspaceID, agentID, intentID); err != nil {
		return nil, err
	}
	return repo.ListIntentRuns(ctx, s.DB, intentID, limit)
}

// apply validates in and copies it onto it.
func (s *IntentService) apply(it *domain.Intent, in IntentInput) error {
	name := strings.Join(strings.Fields(in.Name), " ")
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidIntent)
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidIntent, s.NameMaxLen)
	}
	if err := ValidateTrigger(in.Trigger); err != nil {
		return err
	}

	at := domain.ActionType(strings.ToUpper(strings.TrimSpace(string(in.ActionType))))
	if at == "" {
		at = domain.ActionWebhook
	}
	if !at.Valid() {
		return fmt.Errorf("%w: unknown actionType %q", ErrInvalidIntent, in.ActionType)
	}

	payload, err := compactPayload(in.Payload)
	if err != nil {
		return err
	}
	actionURL := strings.TrimSpace(in.ActionURL)
	if err := domain.ValidateActionConfig(at, actionURL, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}

	it.Name = name
	it.Description = strings.TrimSpace(in.Description)
	it.Trigger = strings.TrimSpace(in.Trigger)
	it.ActionType = at
	it.ActionURL = actionURL
	it.Payload = payload
	return nil
}

func compactPayload(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: payloadJson is not valid JSON", ErrInvalidIntent)
	}
	return datatypes.JSON(buf.Bytes()), nil
}

// ensureUniqueName rejects a name that case-folds to another intent's name.
func (s *IntentService) ensureUniqueName(ctx context.Context, agentID, selfID, name string) error {
	existing, err := repo.ListIntents(ctx, s.DB, agentID)
	if err != nil {
		return err
	}
	fold := cases.Fold()
	folded := fold.String(name)
	for _, e := range existing {
		if e.ID != selfID && fold.String(e.Name) == folded {
			return ErrDuplicateIntent
		}
	}
	return nil
}
