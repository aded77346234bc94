package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/services"
)

// CreateAgentRequest is the JSON payload for creating an agent.
type CreateAgentRequest struct {
	Name         string `json:"name" binding:"required" example:"Recepción"`
	Instructions string `json:"instructions" example:"Responde en español, de forma breve."`
	Knowledge    string `json:"knowledge" example:"Abrimos de lunes a viernes de 9 a 18."`
	Model        string `json:"model" example:"gpt-4o-mini"`
}

// CreateAgent godoc
// @ID          createAgent
// @Summary     Create an agent
// @Tags        Agents
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       body            body    handlers.CreateAgentRequest  true  "Agent"
// @Success     201  {object}  domain.Agent
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /agents [post]
func (h *Handlers) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.agents.Create(c.Request.Context(), workspaceID(c), services.AgentInput{
		Name:         req.Name,
		Instructions: req.Instructions,
		Knowledge:    req.Knowledge,
		Model:        req.Model,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// GetAgent godoc
// @ID          getAgent
// @Summary     Get an agent
// @Tags        Agents
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Success     200  {object}  domain.Agent
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId} [get]
func (h *Handlers) GetAgent(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	a, err := h.agents.Get(c.Request.Context(), workspaceID(c), agentID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}
