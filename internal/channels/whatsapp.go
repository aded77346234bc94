// Package channels – WhatsApp Cloud API webhooks
//
// Wire types and the parser for "whatsapp_business_account" deliveries. The
// correlation key is metadata.phone_number_id; the sender is the wa_id, and
// contact profile names ride alongside in value.contacts.

package channels

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// WhatsApp Cloud API webhook envelope.
type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Metadata         waMetadata  `json:"metadata"`
	Contacts         []waContact `json:"contacts"`
	Messages         []waMessage `json:"messages"`
}

type waMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type waContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type waMessage struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Text      *waText  `json:"text,omitempty"`
	Image     *waMedia `json:"image,omitempty"`
	Document  *waMedia `json:"document,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// ParseWhatsApp normalizes a Cloud API webhook body. Status callbacks and
// unsupported message types (audio, location, reactions) are skipped.
func ParseWhatsApp(body []byte) ([]InboundMessage, error) {
	var p waPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			// profile names are listed once per delivery, keyed by wa_id
			names := make(map[string]string, len(v.Contacts))
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range v.Messages {
				in := InboundMessage{
					Provider:          domain.ChannelWhatsApp,
					CorrelationKey:    strings.TrimSpace(v.Metadata.PhoneNumberID),
					ExternalID:        msg.From,
					ProviderMessageID: msg.ID,
					ContactName:       names[msg.From],
				}
				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				in.Timestamp = unixTime(ts)

				switch {
				case msg.Type == "text" && msg.Text != nil:
					in.Kind, in.Text = KindText, msg.Text.Body
				case msg.Type == "image" && msg.Image != nil:
					in.Kind = KindImage
					in.Media = &MediaRef{ID: msg.Image.ID, Mime: msg.Image.MimeType, Caption: msg.Image.Caption}
				case msg.Type == "document" && msg.Document != nil:
					in.Kind = KindDocument
					in.Media = &MediaRef{
						ID: msg.Document.ID, Mime: msg.Document.MimeType,
						Filename: msg.Document.Filename, Caption: msg.Document.Caption,
					}
				default:
					continue
				}
				out = append(out, in)
			}
		}
	}
	return out, nil
}
