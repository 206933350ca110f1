package handlers

import (
	"uberapp/internal/middleware"
	"uberapp/internal/utils"
	"uberapp/pkg/logger"
	"uberapp/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// WSHandler upgrades authenticated clients onto the hub. The client's room
// membership, and so the slice of ride updates it receives, follows its
// role: customers their own rides, drivers their assignments plus open
// offers, admins everything.
type WSHandler struct {
	hub    *websocket.Hub
	logger *logger.Logger
}

func NewWSHandler(hub *websocket.Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: log,
	}
}

// Connect upgrades the request to a websocket subscription
func (h *WSHandler) Connect(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	err := websocket.ServeWS(h.hub, c.Writer, c.Request, principal.UserID, string(principal.Role))
	if err != nil {
		h.logger.WithError(err).WithUserID(principal.UserID).Warn("websocket upgrade failed")
		return
	}
}
