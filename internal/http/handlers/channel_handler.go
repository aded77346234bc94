package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/services"
)

// ChannelRequest is the JSON payload for creating or updating a channel.
// On update an empty accessToken keeps the stored one.
type ChannelRequest struct {
	Type     string               `json:"type" enums:"WHATSAPP,INSTAGRAM,MESSENGER,WEBCHAT" example:"WHATSAPP"`
	Config   domain.ChannelConfig `json:"config"`
	IsActive *bool                `json:"isActive,omitempty"`
}

// ChannelView is a channel with its access token masked.
type ChannelView struct {
	ID        string               `json:"id"`
	AgentID   string               `json:"agentId"`
	Type      domain.ChannelType   `json:"type"`
	Config    domain.ChannelConfig `json:"config"`
	IsActive  bool                 `json:"isActive"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func channelView(ch *domain.Channel) ChannelView {
	return ChannelView{
		ID:        ch.ID,
		AgentID:   ch.AgentID,
		Type:      ch.Type,
		Config:    ch.Config.Data().Redacted(),
		IsActive:  ch.IsActive,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

// ListChannelsResponse wraps an agent's channels.
type ListChannelsResponse struct {
	Channels []ChannelView `json:"channels"`
}

// CreateChannel godoc
// @ID          createChannel
// @Summary     Connect a channel to an agent
// @Description Provider channels need their correlation id (phoneNumberId, pageId or instagramAccountId), unique across agents.
// @Tags        Channels
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       body            body    handlers.ChannelRequest  true  "Channel"
// @Success     201  {object}  handlers.ChannelView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Correlation id already bound"
// @Router      /agents/{agentId}/channels [post]
func (h *Handlers) CreateChannel(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ch, err := h.channels.Create(c.Request.Context(), workspaceID(c), agentID, services.ChannelInput{
		Type:     req.Type,
		Config:   req.Config,
		IsActive: req.IsActive,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, channelView(ch))
}

// ListChannels godoc
// @ID          listChannels
// @Summary     List an agent's channels
// @Tags        Channels
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Success     200  {object}  handlers.ListChannelsResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/channels [get]
func (h *Handlers) ListChannels(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	items, err := h.channels.List(c.Request.Context(), workspaceID(c), agentID)
	if err != nil {
		failService(c, err)
		return
	}
	views := make([]ChannelView, 0, len(items))
	for i := range items {
		views = append(views, channelView(&items[i]))
	}
	ok(c, http.StatusOK, ListChannelsResponse{Channels: views})
}

// UpdateChannel godoc
// @ID          updateChannel
// @Summary     Update a channel
// @Tags        Channels
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       channelId       path    string  true   "Channel ID"    format(uuid)
// @Param       body            body    handlers.ChannelRequest  true  "Channel"
// @Success     200  {object}  handlers.ChannelView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/channels/{channelId} [put]
func (h *Handlers) UpdateChannel(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	channelID, valid := uuidParam(c, "channelId")
	if !valid {
		return
	}
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ch, err := h.channels.Update(c.Request.Context(), workspaceID(c), agentID, channelID, services.ChannelInput{
		Type:     req.Type,
		Config:   req.Config,
		IsActive: req.IsActive,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, channelView(ch))
}
