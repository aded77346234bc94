// Package channels – providers
//
// Provider is the seam between the inbound pipeline and one messaging
// platform: parse a webhook body, send a reply, fetch an attachment.
// Registry maps channel types to providers; NewRegistry wires the built-in
// WhatsApp, Messenger, Instagram and webchat adapters around one GraphClient.

package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// Provider is one messaging integration.
type Provider interface {
	Type() domain.ChannelType
	// Parse normalizes a raw webhook body.
	Parse(body []byte) ([]InboundMessage, error)
	// Send delivers a text reply to the external party and returns the
	// provider message id when one is reported.
	Send(ctx context.Context, cfg domain.ChannelConfig, to, text string) (string, error)
	// FetchMedia downloads the attachment behind ref.
	FetchMedia(ctx context.Context, cfg domain.ChannelConfig, ref MediaRef) (*Media, error)
}

// Registry maps channel types to providers.
type Registry struct {
	providers map[domain.ChannelType]Provider
}

// NewRegistry wires the built-in providers on top of a Graph API client.
func NewRegistry(g *GraphClient) *Registry {
	r := &Registry{providers: map[domain.ChannelType]Provider{}}
	r.Register(whatsappProvider{g: g})
	r.Register(pageProvider{t: domain.ChannelMessenger, g: g, parse: ParseMessenger})
	r.Register(pageProvider{t: domain.ChannelInstagram, g: g, parse: ParseInstagram})
	r.Register(webchatProvider{})
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Type()] = p
}

// Get returns the provider for t.
func (r *Registry) Get(t domain.ChannelType) (Provider, bool) {
	p, ok := r.providers[t]
	return p, ok
}

type whatsappProvider struct{ g *GraphClient }

func (whatsappProvider) Type() domain.ChannelType { return domain.ChannelWhatsApp }

func (whatsappProvider) Parse(body []byte) ([]InboundMessage, error) { return ParseWhatsApp(body) }

func (p whatsappProvider) Send(ctx context.Context, cfg domain.ChannelConfig, to, text string) (string, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return "", ErrMissingCredentials
	}
	return p.g.SendWhatsApp(ctx, cfg.PhoneNumberID, cfg.AccessToken, to, text)
}

func (p whatsappProvider) FetchMedia(ctx context.Context, cfg domain.ChannelConfig, ref MediaRef) (*Media, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingCredentials
	}
	if ref.ID == "" {
		return nil, fmt.Errorf("whatsapp media reference has no id")
	}
	m, err := p.g.FetchWhatsAppMedia(ctx, cfg.AccessToken, ref.ID)
	if err != nil {
		return nil, err
	}
	if ref.Filename != "" {
		m.Filename = ref.Filename
	}
	return m, nil
}

type pageProvider struct {
	t     domain.ChannelType
	g     *GraphClient
	parse func([]byte) ([]InboundMessage, error)
}

func (p pageProvider) Type() domain.ChannelType { return p.t }

func (p pageProvider) Parse(body []byte) ([]InboundMessage, error) { return p.parse(body) }

func (p pageProvider) Send(ctx context.Context, cfg domain.ChannelConfig, to, text string) (string, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return "", ErrMissingCredentials
	}
	return p.g.SendPageMessage(ctx, cfg.AccessToken, to, text)
}

func (p pageProvider) FetchMedia(ctx context.Context, cfg domain.ChannelConfig, ref MediaRef) (*Media, error) {
	if ref.URL == "" {
		return nil, fmt.Errorf("%s attachment has no url", strings.ToLower(string(p.t)))
	}
	// Attachment URLs are pre-signed CDN links; no bearer token is sent.
	m, err := p.g.Download(ctx, ref.URL, "")
	if err != nil {
		return nil, err
	}
	if m.Filename == "" {
		m.Filename = ref.Filename
	}
	return m, nil
}

// webchatProvider replies inline in the HTTP response, so Send is a no-op.
type webchatProvider struct{}

func (webchatProvider) Type() domain.ChannelType { return domain.ChannelWebchat }

func (webchatProvider) Parse([]byte) ([]InboundMessage, error) { return nil, ErrUnsupported }

func (webchatProvider) Send(context.Context, domain.ChannelConfig, string, string) (string, error) {
	return "", nil
}

func (webchatProvider) FetchMedia(context.Context, domain.ChannelConfig, MediaRef) (*Media, error) {
	return nil, ErrUnsupported
}
