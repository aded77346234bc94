// Package channels – Messenger and Instagram webhooks
//
// Both platforms share the page "messaging" envelope and differ only in the
// object name. The correlation key is the recipient id (page or Instagram
// account, falling back to the entry id), echoes of the page's own messages are dropped and each supported
// attachment becomes its own InboundMessage with a distinct dedup key.

package channels

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// Messenger and Instagram share the page "messaging" envelope.
type pagePayload struct {
	Object string      `json:"object"`
	Entry  []pageEntry `json:"entry"`
}

type pageEntry struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Messaging []pageMessaging `json:"messaging"`
}

type pageMessaging struct {
	Sender    pageParty    `json:"sender"`
	Recipient pageParty    `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *pageMessage `json:"message,omitempty"`
}

type pageParty struct {
	ID string `json:"id"`
}

type pageMessage struct {
	MID         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	Attachments []pageAttachment `json:"attachments"`
}

type pageAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// ParseMessenger normalizes an `object=page` webhook body.
func ParseMessenger(body []byte) ([]InboundMessage, error) {
	return parsePage(body, "page", domain.ChannelMessenger)
}

// ParseInstagram normalizes an `object=instagram` webhook body.
func ParseInstagram(body []byte) ([]InboundMessage, error) {
	return parsePage(body, "instagram", domain.ChannelInstagram)
}

func parsePage(body []byte, object string, t domain.ChannelType) ([]InboundMessage, error) {
	var p pagePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.Object != "" && p.Object != object {
		return nil, fmt.Errorf("%w: unexpected object %q", ErrBadPayload, p.Object)
	}

	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, ev := range entry.Messaging {
			// Deliveries, reads, postbacks and our own echoes carry no user text.
			if ev.Message == nil || ev.Message.IsEcho {
				continue
			}
			key := ev.Recipient.ID
			if key == "" {
				key = entry.ID
			}
			base := InboundMessage{
				Provider:          t,
				CorrelationKey:    strings.TrimSpace(key),
				ExternalID:        ev.Sender.ID,
				ProviderMessageID: ev.Message.MID,
				Timestamp:         unixTime(ev.Timestamp),
			}

			if len(ev.Message.Attachments) == 0 {
				if strings.TrimSpace(ev.Message.Text) == "" {
					continue
				}
				in := base
				in.Kind, in.Text = KindText, ev.Message.Text
				out = append(out, in)
				continue
			}

			// Each attachment becomes its own message. The text rides on the
			// first one only, so it is matched and answered once.
			emitted := 0
			for i, att := range ev.Message.Attachments {
				var kind Kind
				switch att.Type {
				case "image":
					kind = KindImage
				case "file":
					kind = KindDocument
				default:
					continue
				}
				in := base
				in.Kind = kind
				if emitted == 0 {
					in.Text = ev.Message.Text
				}
				in.Media = &MediaRef{URL: att.Payload.URL, Filename: fileNameFromURL(att.Payload.URL)}
				if i > 0 {
					in.ProviderMessageID = fmt.Sprintf("%s#%d", ev.Message.MID, i)
				}
				out = append(out, in)
				emitted++
			}
			if emitted == 0 && strings.TrimSpace(ev.Message.Text) != "" {
				in := base
				in.Kind, in.Text = KindText, ev.Message.Text
				out = append(out, in)
			}
		}
	}
	return out, nil
}

func fileNameFromURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	name := path.Base(raw)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
