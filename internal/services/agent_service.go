// Package services – AgentService
//
// Agent creation and workspace-scoped lookup. loadAgent is the ownership
// check shared by the other dashboard services.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

// AgentInput carries the writable agent fields.
type AgentInput struct {
	Name         string
	Instructions string
	Knowledge    string
	Model        string
}

// AgentService creates and loads agents inside a workspace.
type AgentService struct {
	DB *gorm.DB
	// NameMaxLen caps agent names by rune length.
	NameMaxLen int
}

// NewAgentService constructs an AgentService.
func NewAgentService(db *gorm.DB) *AgentService {
	return &AgentService{DB: db, NameMaxLen: 120}
}

// Create inserts an agent, creating the workspace row on first use.
func (s *AgentService) Create(ctx context.Context, workspaceID string, in AgentInput) (*domain.Agent, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAgent)
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAgent, s.NameMaxLen)
	}

	a := &domain.Agent{
		WorkspaceID:  workspaceID,
		Name:         name,
		Instructions: strings.TrimSpace(in.Instructions),
		Knowledge:    strings.TrimSpace(in.Knowledge),
		Model:        strings.TrimSpace(in.Model),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.EnsureWorkspace(ctx, tx, workspaceID, workspaceID); err != nil {
			return err
		}
		return repo.CreateAgent(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get loads an agent scoped to the workspace.
func (s *AgentService) Get(ctx context.Context, workspaceID, agentID string) (*domain.Agent, error) {
	return loadAgent(ctx, s.DB, workspaceID, agentID)
}

// loadAgent maps a missing or foreign agent to ErrAgentNotFound.
func loadAgent(ctx context.Context, db *gorm.DB, workspaceID, agentID string) (*domain.Agent, error) {
	a, err := repo.GetAgent(ctx, db, workspaceID, agentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAgentNotFound
	}
	return a, err
}
