// Package seed loads demo or fixture data from a YAML file through the
// service layer, so every row passes the same validation as the API.
//
// Layout:
//
//	workspaces:
//	  - id: 00000000-0000-0000-0000-000000000001
//	    name: Demo
//	    agents:
//	      - name: Luna
//	        instructions: Eres una asistente amable.
//	        channels:
//	          - type: WEBCHAT
//	        intents:
//	          - name: saludo
//	            trigger: "hola|buenas"
//	            actionType: FORM
//	            payload:
//	              fields: [{name: email, type: email}]
//
// Loading is repeatable: agents are matched by name, intents whose name is
// taken and channels whose correlation key is bound are skipped.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/services"
)

// File is the document root.
type File struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

type Workspace struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Agents []Agent `yaml:"agents"`
}

type Agent struct {
	Name         string    `yaml:"name"`
	Instructions string    `yaml:"instructions"`
	Knowledge    string    `yaml:"knowledge"`
	Model        string    `yaml:"model"`
	Channels     []Channel `yaml:"channels"`
	Intents      []Intent  `yaml:"intents"`
}

type Channel struct {
	Type               string `yaml:"type"`
	PhoneNumberID      string `yaml:"phoneNumberId"`
	PageID             string `yaml:"pageId"`
	InstagramAccountID string `yaml:"instagramAccountId"`
	AccessToken        string `yaml:"accessToken"`
	Active             *bool  `yaml:"active"`
}

type Intent struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Trigger     string         `yaml:"trigger"`
	ActionType  string         `yaml:"actionType"`
	ActionURL   string         `yaml:"actionUrl"`
	Payload     map[string]any `yaml:"payload"`
	Enabled     *bool          `yaml:"enabled"`
}

// Report counts what a load created and skipped.
type Report struct {
	Workspaces int
	Agents     int
	Channels   int
	Intents    int
	Skipped    int
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, ws := range f.Workspaces {
		if _, err := uuid.Parse(ws.ID); err != nil {
			return nil, fmt.Errorf("workspaces[%d]: id must be a UUID", i)
		}
	}
	return &f, nil
}

// LoadFile parses path and applies it to db.
func LoadFile(ctx context.Context, db *gorm.DB, path string) (Report, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer fh.Close()
	f, err := Parse(fh)
	if err != nil {
		return Report{}, err
	}
	return Apply(ctx, db, f)
}

// Apply creates workspaces, agents, channels and intents in that order.
// The first validation error aborts the load.
func Apply(ctx context.Context, db *gorm.DB, f *File) (Report, error) {
	var rep Report
	log := zerolog.Ctx(ctx)
	agents := services.NewAgentService(db)
	intents := services.NewIntentService(db, nil)
	chans := services.NewChannelService(db, nil)

	for _, ws := range f.Workspaces {
		name := strings.TrimSpace(ws.Name)
		if name == "" {
			name = ws.ID
		}
		if _, err := repo.EnsureWorkspace(ctx, db, ws.ID, name); err != nil {
			return rep, fmt.Errorf("workspace %s: %w", ws.ID, err)
		}
		rep.Workspaces++

		for _, a := range ws.Agents {
			agent, created, err := ensureAgent(ctx, db, agents, ws.ID, a)
			if err != nil {
				return rep, fmt.Errorf("agent %q: %w", a.Name, err)
			}
			if created {
				rep.Agents++
			}

			for _, c := range a.Channels {
				made, err := ensureChannel(ctx, chans, ws.ID, agent.ID, c)
				if err != nil {
					return rep, fmt.Errorf("agent %q channel %s: %w", a.Name, c.Type, err)
				}
				if made {
					rep.Channels++
				} else {
					rep.Skipped++
				}
			}

			for _, in := range a.Intents {
				input, err := in.input()
				if err != nil {
					return rep, fmt.Errorf("agent %q intent %q: %w", a.Name, in.Name, err)
				}
				_, err = intents.Create(ctx, ws.ID, agent.ID, input)
				switch {
				case errors.Is(err, services.ErrDuplicateIntent):
					rep.Skipped++
				case err != nil:
					return rep, fmt.Errorf("agent %q intent %q: %w", a.Name, in.Name, err)
				default:
					rep.Intents++
				}
			}
		}
	}

	log.Info().
		Int("workspaces", rep.Workspaces).
		Int("agents", rep.Agents).
		Int("channels", rep.Channels).
		Int("intents", rep.Intents).
		Int("skipped", rep.Skipped).
		Msg("seed applied")
	return rep, nil
}

func ensureAgent(ctx context.Context, db *gorm.DB, svc *services.AgentService, workspaceID string, a Agent) (*domain.Agent, bool, error) {
	existing, err := repo.FindAgentByName(ctx, db, workspaceID, strings.TrimSpace(a.Name))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}
	created, err := svc.Create(ctx, workspaceID, services.AgentInput{
		Name:         a.Name,
		Instructions: a.Instructions,
		Knowledge:    a.Knowledge,
		Model:        a.Model,
	})
	return created, err == nil, err
}

// ensureChannel skips a channel when the agent already has one of the same
// type and correlation key.
func ensureChannel(ctx context.Context, svc *services.ChannelService, workspaceID, agentID string, c Channel) (bool, error) {
	cfg := domain.ChannelConfig{
		PhoneNumberID:      c.PhoneNumberID,
		PageID:             c.PageID,
		InstagramAccountID: c.InstagramAccountID,
		AccessToken:        c.AccessToken,
	}
	t, _ := domain.ParseChannelType(c.Type)
	existing, err := svc.List(ctx, workspaceID, agentID)
	if err != nil {
		return false, err
	}
	for _, ch := range existing {
		if ch.Type == t && ch.Config.Data().CorrelationKey(t) == cfg.CorrelationKey(t) {
			return false, nil
		}
	}
	_, err = svc.Create(ctx, workspaceID, agentID, services.ChannelInput{Type: c.Type, Config: cfg, IsActive: c.Active})
	if errors.Is(err, services.ErrDuplicateChannel) {
		return false, nil
	}
	return err == nil, err
}

func (in Intent) input() (services.IntentInput, error) {
	out := services.IntentInput{
		Name:        in.Name,
		Description: in.Description,
		Trigger:     in.Trigger,
		ActionType:  domain.ActionType(strings.ToUpper(strings.TrimSpace(in.ActionType))),
		ActionURL:   in.ActionURL,
		Enabled:     in.Enabled,
	}
	if len(in.Payload) > 0 {
		raw, err := json.Marshal(in.Payload)
		if err != nil {
			return out, fmt.Errorf("payload: %w", err)
		}
		out.Payload = raw
	}
	return out, nil
}
