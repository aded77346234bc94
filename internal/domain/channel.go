package domain

import "strings"

// ChannelType enumerates the supported messaging providers.
type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "WHATSAPP"
	ChannelInstagram ChannelType = "INSTAGRAM"
	ChannelMessenger ChannelType = "MESSENGER"
	ChannelWebchat   ChannelType = "WEBCHAT"
)

// Valid reports whether t is a supported channel type.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelWhatsApp, ChannelInstagram, ChannelMessenger, ChannelWebchat:
		return true
	}
	return false
}

// ParseChannelType accepts any casing ("whatsapp", "WhatsApp", "WHATSAPP").
func ParseChannelType(s string) (ChannelType, bool) {
	t := ChannelType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// ChannelConfig carries provider credentials for one channel.
type ChannelConfig struct {
	PhoneNumberID      string `json:"phoneNumberId,omitempty"`
	PageID             string `json:"pageId,omitempty"`
	InstagramAccountID string `json:"instagramAccountId,omitempty"`
	AccessToken        string `json:"accessToken,omitempty"`
}

// CorrelationKey picks the identifier an inbound webhook of type t carries.
func (c ChannelConfig) CorrelationKey(t ChannelType) string {
	switch t {
	case ChannelWhatsApp:
		return strings.TrimSpace(c.PhoneNumberID)
	case ChannelMessenger:
		return strings.TrimSpace(c.PageID)
	case ChannelInstagram:
		return strings.TrimSpace(c.InstagramAccountID)
	}
	return ""
}

// Redacted returns a copy safe to expose over the API.
func (c ChannelConfig) Redacted() ChannelConfig {
	if c.AccessToken != "" {
		c.AccessToken = "********"
	}
	return c
}
