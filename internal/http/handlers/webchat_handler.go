package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/http/middleware"
	"github.com/konsul-app/konsul-backend/internal/services"
)

// WebchatReply is returned to the widget after a post.
type WebchatReply struct {
	ConversationID string          `json:"conversationId"`
	Message        *domain.Message `json:"message,omitempty"`
	Reply          *domain.Message `json:"reply,omitempty"`
	Intent         *IntentOutcome  `json:"intent,omitempty"`
}

// IntentOutcome summarizes the intent that fired for a webchat message.
type IntentOutcome struct {
	ID     string           `json:"id"`
	Result *services.Result `json:"result,omitempty"`
}

// PostWebchatMessage godoc
// @ID          postWebchatMessage
// @Summary     Send a webchat message
// @Description Runs the inbound pipeline and returns the agent's reply. Retrying with the same Idempotency-Key returns the recorded reply with Idempotency-Replayed: true.
// @Tags        Webchat
// @Accept      json
// @Produce     json
// @Param       channelId        path    string  true   "Webchat channel ID"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Retry key"
// @Param       body             body    channels.WebchatMessage  true  "Message"
// @Success     200  {object}  handlers.WebchatReply  "Replay of a completed request"
// @Success     201  {object}  handlers.WebchatReply
// @Header      200  {string}  Idempotency-Replayed  "true"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Same key still in flight"
// @Failure     429  {object}  handlers.ErrorResponse
// @Router      /webchat/{channelId}/messages [post]
func (h *Handlers) PostWebchatMessage(c *gin.Context) {
	channelID, valid := uuidParam(c, "channelId")
	if !valid {
		return
	}
	var msg channels.WebchatMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "visitorId and content are required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	out, err := h.ingest.HandleWebchat(c.Request.Context(), channelID, msg, key)
	if err != nil {
		failService(c, err)
		return
	}
	resp := WebchatReply{
		ConversationID: out.ConversationID,
		Message:        out.Message,
		Reply:          out.Reply,
	}
	if out.IntentID != "" {
		resp.Intent = &IntentOutcome{ID: out.IntentID, Result: out.IntentResult}
	}
	if out.Duplicate {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, resp)
		return
	}
	ok(c, http.StatusCreated, resp)
}

// ListVisitorMessages godoc
// @ID          listVisitorMessages
// @Summary     Webchat history of a visitor
// @Tags        Webchat
// @Produce     json
// @Param       channelId  path   string  true   "Webchat channel ID"  format(uuid)
// @Param       visitorId  path   string  true   "Visitor ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /webchat/{channelId}/visitors/{visitorId}/messages [get]
func (h *Handlers) ListVisitorMessages(c *gin.Context) {
	channelID, valid := uuidParam(c, "channelId")
	if !valid {
		return
	}
	visitorID := strings.TrimSpace(c.Param("visitorId"))
	if visitorID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "visitorId required")
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := h.conversations.VisitorMessages(c.Request.Context(), channelID, visitorID, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
