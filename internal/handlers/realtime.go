package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/realtime"
)

// RealtimeHandler upgrades authenticated requests to websocket connections.
type RealtimeHandler struct {
	server *realtime.Server
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(server *realtime.Server) (*RealtimeHandler, error) {
	if server == nil {
		return nil, errors.New("realtime handler: server is required")
	}
	return &RealtimeHandler{server: server}, nil
}

// Stream upgrades the connection and joins it to the caller's room. Browsers
// cannot set headers on websocket handshakes, so the token usually arrives as
// a query parameter.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	h.server.Serve(user.ID, c.Writer, c.Request)
}
