package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ActionType selects the strategy the executor runs for a matched intent.
type ActionType string

const (
	ActionWebhook  ActionType = "WEBHOOK"
	ActionInternal ActionType = "INTERNAL"
	ActionForm     ActionType = "FORM"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionWebhook, ActionInternal, ActionForm:
		return true
	}
	return false
}

// Internal action names understood by the executor.
const (
	InternalEscalate = "escalate_to_human"
	InternalClose    = "close_conversation"
	InternalAssign   = "assign_conversation"
)

// DefaultFormMessage is shown with a form action that carries no message.
const DefaultFormMessage = "Necesitamos algunos datos para continuar."

var (
	ErrInvalidPayload   = errors.New("invalid action payload")
	ErrMissingActionURL = errors.New("actionUrl is required for WEBHOOK intents")
)

// ActionConfig is the parsed form of Intent.Payload. Exactly one of the
// variants below implements it per action type.
type ActionConfig interface {
	Type() ActionType
}

// WebhookConfig holds the keys merged into the outbound webhook body.
type WebhookConfig struct {
	Extra map[string]any
}

// InternalConfig names a built-in action and its remaining parameters.
type InternalConfig struct {
	Action string
	Params map[string]any
}

// FormField describes one input the chat UI should collect.
type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// FormConfig is the form descriptor returned to the chat UI.
type FormConfig struct {
	Fields     []json.RawMessage `json:"fields"`
	WebhookURL string            `json:"webhookUrl,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func (WebhookConfig) Type() ActionType  { return ActionWebhook }
func (InternalConfig) Type() ActionType { return ActionInternal }
func (FormConfig) Type() ActionType     { return ActionForm }

// ParseActionConfig decodes raw payload JSON into the variant for t.
// Empty or "null" payloads produce the zero variant. Parsing is lenient about
// unknown keys so that payloads written by older clients keep working;
// ValidateActionConfig enforces the stricter write-time schema.
func ParseActionConfig(t ActionType, raw []byte) (ActionConfig, error) {
	obj := map[string]any{}
	if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidPayload)
		}
	}

	switch t {
	case ActionWebhook:
		return WebhookConfig{Extra: obj}, nil

	case ActionInternal:
		action := "unknown"
		if v, ok := obj["action"].(string); ok && strings.TrimSpace(v) != "" {
			action = strings.TrimSpace(v)
		}
		params := make(map[string]any, len(obj))
		for k, v := range obj {
			if k != "action" {
				params[k] = v
			}
		}
		return InternalConfig{Action: action, Params: params}, nil

	case ActionForm:
		var fc FormConfig
		if len(obj) > 0 {
			if err := json.Unmarshal(raw, &fc); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		if fc.Fields == nil {
			fc.Fields = []json.RawMessage{}
		}
		if strings.TrimSpace(fc.Message) == "" {
			fc.Message = DefaultFormMessage
		}
		return fc, nil
	}
	return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidPayload, t)
}

// ValidateActionConfig applies the write-time rules for an intent action.
func ValidateActionConfig(t ActionType, actionURL string, raw []byte) error {
	cfg, err := ParseActionConfig(t, raw)
	if err != nil {
		return err
	}
	switch c := cfg.(type) {
	case WebhookConfig:
		if strings.TrimSpace(actionURL) == "" {
			return ErrMissingActionURL
		}
		if !isHTTPURL(actionURL) {
			return fmt.Errorf("%w: actionUrl must be an absolute http(s) URL", ErrInvalidPayload)
		}
	case InternalConfig:
		switch c.Action {
		case InternalEscalate, InternalClose:
		case InternalAssign:
			if s, _ := c.Params["assignee"].(string); strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: %s requires an assignee", ErrInvalidPayload, InternalAssign)
			}
		default:
			return fmt.Errorf("%w: unknown internal action: %s", ErrInvalidPayload, c.Action)
		}
	case FormConfig:
		if len(c.Fields) == 0 {
			return fmt.Errorf("%w: form requires at least one field", ErrInvalidPayload)
		}
		for i, f := range c.Fields {
			var ff FormField
			if err := json.Unmarshal(f, &ff); err != nil || strings.TrimSpace(ff.Name) == "" {
				return fmt.Errorf("%w: field %d must be an object with a name", ErrInvalidPayload, i)
			}
		}
		if c.WebhookURL != "" && !isHTTPURL(c.WebhookURL) {
			return fmt.Errorf("%w: webhookUrl must be an absolute http(s) URL", ErrInvalidPayload)
		}
	}
	return nil
}

// SplitTrigger breaks a "|"-delimited trigger into trimmed, non-empty patterns.
func SplitTrigger(trigger string) []string {
	parts := strings.Split(trigger, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
