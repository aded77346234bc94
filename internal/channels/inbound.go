// Package channels adapts the WhatsApp Cloud API, Messenger, Instagram and
// webchat wire formats to one InboundMessage shape and sends replies back
// through the provider APIs.
//
// Adapters are stateless: provider credentials arrive per call as a
// domain.ChannelConfig loaded from the owning channel row.
package channels

import (
	"errors"
	"strings"
	"time"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// Kind is the content class of an inbound message.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

var (
	// ErrBadPayload is returned when a webhook body cannot be decoded.
	ErrBadPayload = errors.New("malformed webhook payload")
	// ErrUnsupported is returned for operations a provider does not offer.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrMissingCredentials is returned when a channel lacks its access token.
	ErrMissingCredentials = errors.New("channel has no access token")
)

// MediaRef points at provider-hosted media. WhatsApp delivers an opaque ID
// that must be resolved to a URL; Messenger and Instagram deliver the URL.
type MediaRef struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// InboundMessage is the provider-neutral form of one user message.
type InboundMessage struct {
	Provider          domain.ChannelType
	CorrelationKey    string // phone number id, page id, ig account id or webchat channel id
	ExternalID        string // sender thread id
	ProviderMessageID string
	ContactName       string
	ContactEmail      string
	Kind              Kind
	Text              string
	Media             *MediaRef
	Timestamp         time.Time
}

// Content returns the text used for matching and history: the body for text
// messages, the caption for media, or a short placeholder.
func (m InboundMessage) Content() string {
	if t := strings.TrimSpace(m.Text); t != "" {
		return t
	}
	if m.Media != nil {
		if c := strings.TrimSpace(m.Media.Caption); c != "" {
			return c
		}
		if m.Media.Filename != "" {
			return "[" + string(m.Kind) + ": " + m.Media.Filename + "]"
		}
	}
	return "[" + string(m.Kind) + "]"
}

// DedupKey is the key used for inbound de-duplication. Empty means the
// message cannot be de-duplicated.
func (m InboundMessage) DedupKey() string {
	return strings.TrimSpace(m.ProviderMessageID)
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Now().UTC()
	}
	// Messenger reports milliseconds, WhatsApp seconds.
	if sec > 1e12 {
		return time.UnixMilli(sec).UTC()
	}
	return time.Unix(sec, 0).UTC()
}
