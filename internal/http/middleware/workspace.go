// Package middleware contains the Gin middleware shared by the dashboard API,
// the provider webhooks and the webchat endpoints.
//
// This file resolves the tenant for dashboard routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderWorkspaceID selects the tenant for dashboard requests.
const HeaderWorkspaceID = "X-Workspace-ID"

const workspaceKey = "workspaceID"

// Workspace resolves the tenant from X-Workspace-ID, falling back to
// defaultID when the header is absent. A header that is not a UUID is
// rejected with 400.
func Workspace(defaultID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := strings.TrimSpace(c.GetHeader(HeaderWorkspaceID))
		if ws == "" {
			ws = defaultID
		} else if _, err := uuid.Parse(ws); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": requestID(c),
				"code":       "bad_request",
				"message":    "X-Workspace-ID must be a UUID",
			})
			return
		}
		c.Set(workspaceKey, ws)
		c.Next()
	}
}

// WorkspaceFrom returns the workspace stored by Workspace, or "".
func WorkspaceFrom(c *gin.Context) string {
	return c.GetString(workspaceKey)
}
