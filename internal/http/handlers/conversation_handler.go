// Conversation HTTP handlers.
//
//   - GET   /agents/{agentId}/conversations  (paginated, status filter)
//   - GET   /conversations/{id}/messages     (paginated, ETag support)
//   - PATCH /conversations/{id}/status       (open / close / hand over)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// ListConversationsResponse wraps a page of conversations, most recent
// activity first.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse wraps a page of messages in chronological order.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// UpdateStatusRequest changes a conversation status. AssignedTo, when
// present, replaces the assignee (empty string clears it).
type UpdateStatusRequest struct {
	Status     string  `json:"status" binding:"required" enums:"BOT,OPEN,CLOSED" example:"OPEN"`
	AssignedTo *string `json:"assignedTo,omitempty" example:"ana@example.com"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List an agent's conversations (paginated)
// @Tags        Conversations
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       status          query   string  false  "Status filter" Enums(BOT,OPEN,CLOSED)
// @Param       page            query   int     false  "Page number"   minimum(1) default(1)
// @Param       page_size       query   int     false  "Items per page" minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListConversationsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := h.conversations.ListPage(c.Request.Context(), workspaceID(c), agentID, c.Query("status"), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Conversation{}
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// ListMessages godoc
// @ID          listConversationMessages
// @Summary     List a conversation's messages (paginated)
// @Description Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       If-None-Match   header  string  false  "Return 304 if ETag matches"
// @Param       id              path    string  true   "Conversation ID" format(uuid)
// @Param       page            query   int     false  "Page number"   minimum(1) default(1)
// @Param       page_size       query   int     false  "Items per page" minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for the conversation history"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	ws := workspaceID(c)
	page, pageSize := clampPagination(c)

	etag, err := h.conversations.MessagesETag(ctx, ws, id, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	items, total, err := h.conversations.Messages(ctx, ws, id, page, pageSize)
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

// UpdateConversationStatus godoc
// @ID          updateConversationStatus
// @Summary     Change a conversation's status
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       id              path    string  true   "Conversation ID" format(uuid)
// @Param       body            body    handlers.UpdateStatusRequest  true  "Status"
// @Success     200  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/status [patch]
func (h *Handlers) UpdateConversationStatus(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	conv, err := h.conversations.SetStatus(c.Request.Context(), workspaceID(c), id, req.Status, req.AssignedTo)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, conv)
}
