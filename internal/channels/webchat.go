package channels

import (
	"strings"
	"time"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// WebchatMessage is the JSON body the embeddable widget posts.
type WebchatMessage struct {
	VisitorID string `json:"visitorId" binding:"required"`
	Content   string `json:"content"   binding:"required"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ToInbound converts a widget post for channelID. idempotencyKey, when set,
// doubles as the provider message id for de-duplication.
func (w WebchatMessage) ToInbound(channelID, idempotencyKey string) InboundMessage {
	return InboundMessage{
		Provider:          domain.ChannelWebchat,
		CorrelationKey:    channelID,
		ExternalID:        strings.TrimSpace(w.VisitorID),
		ProviderMessageID: strings.TrimSpace(idempotencyKey),
		ContactName:       strings.TrimSpace(w.Name),
		ContactEmail:      strings.TrimSpace(w.Email),
		Kind:              KindText,
		Text:              w.Content,
		Timestamp:         time.Now().UTC(),
	}
}
