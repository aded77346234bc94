// Package services – ChannelService
//
// This file implements ChannelService: channel CRUD for the dashboard and
// Resolve, which maps an inbound (channel type, correlation key) to an active
// channel. Lookups go through the ChannelKey index, fronted by the optional
// Redis cache; updates invalidate both the old and the new key.
//
// Observability: Resolve opens a span and tags whether the cache was hit.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/cache"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

// ChannelInput carries the writable channel fields. IsActive nil keeps the
// current value on update and defaults to true on create.
type ChannelInput struct {
	Type     string
	Config   domain.ChannelConfig
	IsActive *bool
}

// ChannelService manages channels and resolves inbound correlation keys.
type ChannelService struct {
	DB *gorm.DB
	// Keys caches correlation key lookups; nil disables caching.
	Keys *cache.ChannelKeyCache
}

// NewChannelService constructs a ChannelService.
func NewChannelService(db *gorm.DB, keys *cache.ChannelKeyCache) *ChannelService {
	return &ChannelService{DB: db, Keys: keys}
}

// Create validates and inserts a channel for an agent of the workspace.
func (s *ChannelService) Create(ctx context.Context, workspaceID, agentID string, in ChannelInput) (*domain.Channel, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	t, ok := domain.ParseChannelType(in.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidChannel, in.Type)
	}
	cfg := normalizeChannelConfig(in.Config)
	if err := validateChannelConfig(t, cfg); err != nil {
		return nil, err
	}

	ch := &domain.Channel{
		AgentID:  agentID,
		Type:     t,
		Config:   datatypes.NewJSONType(cfg),
		IsActive: in.IsActive == nil || *in.IsActive,
	}
	if err := repo.CreateChannel(ctx, s.DB, ch); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateChannel
		}
		return nil, err
	}
	return ch, nil
}

// List returns the agent's channels.
func (s *ChannelService) List(ctx context.Context, workspaceID, agentID string) ([]domain.Channel, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	return repo.ListChannels(ctx, s.DB, agentID)
}

// Update replaces the channel config and optionally toggles IsActive. The
// channel type is immutable. The correlation key index is rewritten and the
// previous key dropped from the cache.
func (s *ChannelService) Update(ctx context.Context, workspaceID, agentID, channelID string, in ChannelInput) (*domain.Channel, error) {
	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, err
	}
	ch, err := repo.GetAgentChannel(ctx, s.DB, agentID, channelID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	if in.Type != "" {
		if t, ok := domain.ParseChannelType(in.Type); !ok || t != ch.Type {
			return nil, fmt.Errorf("%w: channel type cannot change", ErrInvalidChannel)
		}
	}

	cfg := normalizeChannelConfig(in.Config)
	if cfg.AccessToken == "" {
		cfg.AccessToken = ch.Config.Data().AccessToken
	}
	if err := validateChannelConfig(ch.Type, cfg); err != nil {
		return nil, err
	}

	oldKey := ch.CorrelationKey()
	ch.Config = datatypes.NewJSONType(cfg)
	if in.IsActive != nil {
		ch.IsActive = *in.IsActive
	}
	if err := repo.UpdateChannel(ctx, s.DB, agentID, ch); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateChannel
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	s.Keys.Invalidate(ctx, ch.Type, oldKey)
	s.Keys.Invalidate(ctx, ch.Type, ch.CorrelationKey())
	return repo.GetChannel(ctx, s.DB, ch.ID)
}

// Resolve finds the active channel an inbound event of type t belongs to.
// Webchat channels are addressed by id; provider channels through the
// correlation key index.
func (s *ChannelService) Resolve(ctx context.Context, t domain.ChannelType, key string) (*domain.Channel, error) {
	ctx, span := otel.Tracer("services/ChannelService").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("channel.type", string(t))),
	)
	defer span.End()

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrChannelNotFound
	}

	id := key
	if t != domain.ChannelWebchat {
		cached, hit := s.Keys.Get(ctx, t, key)
		span.SetAttributes(attribute.Bool("cache.hit", hit))
		if hit {
			id = cached
		} else {
			found, err := repo.FindChannelIDByKey(ctx, s.DB, t, key)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrChannelNotFound
			}
			if err != nil {
				return nil, err
			}
			id = found
		}
	}

	ch, err := repo.GetChannel(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		s.Keys.Invalidate(ctx, t, key)
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	if ch.Type != t || !ch.IsActive {
		return nil, ErrChannelNotFound
	}
	if t != domain.ChannelWebchat {
		s.Keys.Set(ctx, t, key, ch.ID)
	}
	span.SetAttributes(attribute.String("channel.id", ch.ID))
	return ch, nil
}

func normalizeChannelConfig(c domain.ChannelConfig) domain.ChannelConfig {
	c.PhoneNumberID = strings.TrimSpace(c.PhoneNumberID)
	c.PageID = strings.TrimSpace(c.PageID)
	c.InstagramAccountID = strings.TrimSpace(c.InstagramAccountID)
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	return c
}

func validateChannelConfig(t domain.ChannelType, c domain.ChannelConfig) error {
	if t == domain.ChannelWebchat {
		return nil
	}
	if c.CorrelationKey(t) == "" {
		field := map[domain.ChannelType]string{
			domain.ChannelWhatsApp:  "phoneNumberId",
			domain.ChannelMessenger: "pageId",
			domain.ChannelInstagram: "instagramAccountId",
		}[t]
		return fmt.Errorf("%w: %s is required for %s", ErrInvalidChannel, field, t)
	}
	return nil
}
