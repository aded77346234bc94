// Intent HTTP handlers.
//
//   - POST   /agents/{agentId}/intents                    (create)
//   - GET    /agents/{agentId}/intents                    (list)
//   - GET    /agents/{agentId}/intents/{intentId}         (get)
//   - PUT    /agents/{agentId}/intents/{intentId}         (update)
//   - DELETE /agents/{agentId}/intents/{intentId}         (delete)
//   - PATCH  /agents/{agentId}/intents/{intentId}/toggle  (flip enabled)
//   - GET    /agents/{agentId}/intents/{intentId}/runs    (recent executions)
//   - POST   /agents/{agentId}/intents/detect             (dry-run match)
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/services"
	"github.com/konsul-app/konsul-backend/internal/utils"
)

// IntentRequest is the JSON payload for creating or replacing an intent.
// ActionType defaults to WEBHOOK and Enabled to true.
type IntentRequest struct {
	Name        string          `json:"name" example:"Saludo"`
	Description string          `json:"description" example:"Saluda y ofrece ayuda"`
	Trigger     string          `json:"trigger" example:"hola|buenas"`
	ActionType  string          `json:"actionType" enums:"WEBHOOK,INTERNAL,FORM" example:"WEBHOOK"`
	ActionURL   string          `json:"actionUrl,omitempty" example:"https://hooks.example.com/lead"`
	PayloadJSON json.RawMessage `json:"payloadJson,omitempty" swaggertype:"object"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

func (r IntentRequest) input() services.IntentInput {
	return services.IntentInput{
		Name:        r.Name,
		Description: r.Description,
		Trigger:     r.Trigger,
		ActionType:  domain.ActionType(r.ActionType),
		ActionURL:   r.ActionURL,
		Payload:     r.PayloadJSON,
		Enabled:     r.Enabled,
	}
}

// DetectRequest is the JSON payload for a dry-run match.
type DetectRequest struct {
	Message string `json:"message" binding:"required" example:"Hola, buenas tardes"`
}

// DetectResponse reports the intent that would fire, if any.
type DetectResponse struct {
	Matched bool           `json:"matched"`
	Intent  *domain.Intent `json:"intent,omitempty"`
}

// ListIntentsResponse wraps an agent's intents in evaluation order.
type ListIntentsResponse struct {
	Intents []domain.Intent `json:"intents"`
}

// ListIntentRunsResponse wraps recent executions, newest first.
type ListIntentRunsResponse struct {
	Runs []domain.IntentRun `json:"runs"`
}

func (h *Handlers) intentPath(c *gin.Context) (agentID, intentID string, valid bool) {
	if agentID, valid = uuidParam(c, "agentId"); !valid {
		return
	}
	intentID, valid = uuidParam(c, "intentId")
	return
}

// CreateIntent godoc
// @ID          createIntent
// @Summary     Create an intent
// @Description Triggers are "|"-separated regular expressions matched case-insensitively.
// @Tags        Intents
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       body            body    handlers.IntentRequest  true  "Intent"
// @Success     201  {object}  domain.Intent
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Name already in use"
// @Router      /agents/{agentId}/intents [post]
func (h *Handlers) CreateIntent(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	it, err := h.intents.Create(c.Request.Context(), workspaceID(c), agentID, req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, it)
}

// ListIntents godoc
// @ID          listIntents
// @Summary     List an agent's intents
// @Tags        Intents
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Success     200  {object}  handlers.ListIntentsResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents [get]
func (h *Handlers) ListIntents(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	items, err := h.intents.List(c.Request.Context(), workspaceID(c), agentID)
	if err != nil {
		failService(c, err)
		return
	}
	if items == nil {
		items = []domain.Intent{}
	}
	ok(c, http.StatusOK, ListIntentsResponse{Intents: items})
}

// GetIntent godoc
// @ID          getIntent
// @Summary     Get an intent
// @Tags        Intents
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       intentId        path    string  true   "Intent ID"     format(uuid)
// @Success     200  {object}  domain.Intent
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/{intentId} [get]
func (h *Handlers) GetIntent(c *gin.Context) {
	agentID, intentID, valid := h.intentPath(c)
	if !valid {
		return
	}
	it, err := h.intents.Get(c.Request.Context(), workspaceID(c), agentID, intentID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// UpdateIntent godoc
// @ID          updateIntent
// @Summary     Replace an intent
// @Tags        Intents
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       intentId        path    string  true   "Intent ID"     format(uuid)
// @Param       body            body    handlers.IntentRequest  true  "Intent"
// @Success     200  {object}  domain.Intent
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/{intentId} [put]
func (h *Handlers) UpdateIntent(c *gin.Context) {
	agentID, intentID, valid := h.intentPath(c)
	if !valid {
		return
	}
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	it, err := h.intents.Update(c.Request.Context(), workspaceID(c), agentID, intentID, req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// ToggleIntent godoc
// @ID          toggleIntent
// @Summary     Enable or disable an intent
// @Tags        Intents
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       intentId        path    string  true   "Intent ID"     format(uuid)
// @Success     200  {object}  domain.Intent
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/{intentId}/toggle [patch]
func (h *Handlers) ToggleIntent(c *gin.Context) {
	agentID, intentID, valid := h.intentPath(c)
	if !valid {
		return
	}
	it, err := h.intents.Toggle(c.Request.Context(), workspaceID(c), agentID, intentID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// DeleteIntent godoc
// @ID          deleteIntent
// @Summary     Delete an intent
// @Tags        Intents
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       intentId        path    string  true   "Intent ID"     format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/{intentId} [delete]
func (h *Handlers) DeleteIntent(c *gin.Context) {
	agentID, intentID, valid := h.intentPath(c)
	if !valid {
		return
	}
	if err := h.intents.Delete(c.Request.Context(), workspaceID(c), agentID, intentID); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ListIntentRuns godoc
// @ID          listIntentRuns
// @Summary     Recent executions of an intent
// @Tags        Intents
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       intentId        path    string  true   "Intent ID"     format(uuid)
// @Param       limit           query   int     false  "Max runs"      minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListIntentRunsResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/{intentId}/runs [get]
func (h *Handlers) ListIntentRuns(c *gin.Context) {
	agentID, intentID, valid := h.intentPath(c)
	if !valid {
		return
	}
	_, limit := utils.ClampPage(1, utils.AtoiDefault(c.Query("limit"), utils.DefaultPageSize))
	runs, err := h.intents.Runs(c.Request.Context(), workspaceID(c), agentID, intentID, limit)
	if err != nil {
		failService(c, err)
		return
	}
	if runs == nil {
		runs = []domain.IntentRun{}
	}
	ok(c, http.StatusOK, ListIntentRunsResponse{Runs: runs})
}

// DetectIntent godoc
// @ID          detectIntent
// @Summary     Dry-run intent matching
// @Description Returns the first enabled intent whose trigger matches the message. Nothing is executed or counted.
// @Tags        Intents
// @Accept      json
// @Produce     json
// @Param       X-Workspace-ID  header  string  false  "Workspace ID"  format(uuid)
// @Param       agentId         path    string  true   "Agent ID"      format(uuid)
// @Param       body            body    handlers.DetectRequest  true  "Message"
// @Success     200  {object}  handlers.DetectResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /agents/{agentId}/intents/detect [post]
func (h *Handlers) DetectIntent(c *gin.Context) {
	agentID, valid := uuidParam(c, "agentId")
	if !valid {
		return
	}
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	it, err := h.intents.Detect(c.Request.Context(), workspaceID(c), agentID, req.Message)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, DetectResponse{Matched: it != nil, Intent: it})
}
