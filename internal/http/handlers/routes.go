package handlers

import "github.com/gin-gonic/gin"

// RegisterDashboard mounts the workspace-scoped management API on g.
func (h *Handlers) RegisterDashboard(g *gin.RouterGroup) {
	g.POST("/agents", h.CreateAgent)
	g.GET("/agents/:agentId", h.GetAgent)

	g.POST("/agents/:agentId/intents", h.CreateIntent)
	g.GET("/agents/:agentId/intents", h.ListIntents)
	g.POST("/agents/:agentId/intents/detect", h.DetectIntent)
	g.GET("/agents/:agentId/intents/:intentId", h.GetIntent)
	g.PUT("/agents/:agentId/intents/:intentId", h.UpdateIntent)
	g.DELETE("/agents/:agentId/intents/:intentId", h.DeleteIntent)
	g.PATCH("/agents/:agentId/intents/:intentId/toggle", h.ToggleIntent)
	g.GET("/agents/:agentId/intents/:intentId/runs", h.ListIntentRuns)

	g.POST("/agents/:agentId/channels", h.CreateChannel)
	g.GET("/agents/:agentId/channels", h.ListChannels)
	g.PUT("/agents/:agentId/channels/:channelId", h.UpdateChannel)

	g.GET("/agents/:agentId/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.PATCH("/conversations/:id/status", h.UpdateConversationStatus)
}

// RegisterWebchat mounts the public widget endpoints on g.
func (h *Handlers) RegisterWebchat(g *gin.RouterGroup) {
	g.POST("/:channelId/messages", h.PostWebchatMessage)
	g.GET("/:channelId/visitors/:visitorId/messages", h.ListVisitorMessages)
}

// RegisterWebhooks mounts the Meta provider webhooks on g.
func (h *Handlers) RegisterWebhooks(g *gin.RouterGroup) {
	g.GET("/:provider", h.VerifyWebhook)
	g.POST("/:provider", h.ReceiveWebhook)
}
