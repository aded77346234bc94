package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/domain"
)

// WebhookAck is returned once a provider delivery has been processed.
type WebhookAck struct {
	Received   int `json:"received"`
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// webhookProvider maps the :provider segment to a Meta channel type.
func webhookProvider(c *gin.Context) (domain.ChannelType, bool) {
	t, valid := domain.ParseChannelType(c.Param("provider"))
	if !valid || t == domain.ChannelWebchat {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown provider")
		return "", false
	}
	return t, true
}

// VerifyWebhook godoc
// @ID          verifyWebhook
// @Summary     Meta subscription handshake
// @Description Echoes hub.challenge when hub.verify_token matches the provider's token.
// @Tags        Webhooks
// @Produce     plain
// @Param       provider          path   string  true  "Provider"  Enums(whatsapp,instagram,messenger)
// @Param       hub.mode          query  string  true  "subscribe"
// @Param       hub.verify_token  query  string  true  "Verify token"
// @Param       hub.challenge     query  string  true  "Challenge to echo"
// @Success     200  {string}  string  "challenge"
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /webhooks/{provider} [get]
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	if _, valid := webhookProvider(c); !valid {
		return
	}
	var token string
	if h.webhook.VerifyToken != nil {
		token = h.webhook.VerifyToken(strings.ToLower(c.Param("provider")))
	}
	challenge, verified := channels.Verify(c.Request.URL.Query(), token)
	if !verified {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Meta message delivery
// @Description Normalizes and processes every message in the delivery. Per-message failures are logged and still acknowledged; 404 is returned only when no message matched a channel.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       provider             path    string  true   "Provider"  Enums(whatsapp,instagram,messenger)
// @Param       X-Hub-Signature-256  header  string  false  "sha256=<hex> HMAC of the body (required when an app secret is configured)"
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed payload"
// @Failure     403  {object}  handlers.ErrorResponse  "Signature mismatch"
// @Failure     404  {object}  handlers.ErrorResponse  "No channel matched"
// @Router      /webhooks/{provider} [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	t, valid := webhookProvider(c)
	if !valid {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	if h.webhook.AppSecret != "" && !channels.ValidSignature(body, c.GetHeader(channels.HeaderSignature), h.webhook.AppSecret) {
		fail(c, http.StatusForbidden, ErrCodeInvalidSignature, "signature mismatch")
		return
	}

	rep, err := h.ingest.HandleWebhook(c.Request.Context(), t, body)
	if err != nil {
		if errors.Is(err, channels.ErrBadPayload) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidPayload, "malformed webhook payload")
			return
		}
		failService(c, err)
		return
	}
	// Lookup errors count as Failed, not as a miss; they are acknowledged
	// like any other per-message failure.
	if rep.Received > 0 && rep.Matched == 0 && rep.Failed == 0 {
		fail(c, http.StatusNotFound, ErrCodeNoChannel, "no channel matched the delivery")
		return
	}
	ok(c, http.StatusOK, WebhookAck{
		Received:   rep.Received,
		Processed:  rep.Processed,
		Duplicates: rep.Duplicates,
		Failed:     rep.Failed,
	})
}
