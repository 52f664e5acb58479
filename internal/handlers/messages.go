package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/services"
	"github.com/steamsedu/steams/pkg/response"
)

// MessageHandler exposes the direct message channel over HTTP.
type MessageHandler struct {
	service *services.MessageService
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(service *services.MessageService) (*MessageHandler, error) {
	if service == nil {
		return nil, errors.New("message handler: service is required")
	}
	return &MessageHandler{service: service}, nil
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

// GET /api/messages?userId=
func (h *MessageHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	messages, err := h.service.List(requestContext(c), user.ID, c.Query("userId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}

// POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.service.Send(requestContext(c), user.ID, req.ReceiverID, req.Content)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// POST /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	message, err := h.service.MarkRead(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, message)
}
