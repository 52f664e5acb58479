package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/services"
	"github.com/steamsedu/steams/pkg/response"
)

// ProgressHandler relays lesson completion to the learner's open sessions.
type ProgressHandler struct {
	service *services.ProgressService
}

// NewProgressHandler constructs a ProgressHandler.
func NewProgressHandler(service *services.ProgressService) (*ProgressHandler, error) {
	if service == nil {
		return nil, errors.New("progress handler: service is required")
	}
	return &ProgressHandler{service: service}, nil
}

type progressRequest struct {
	LessonID       string `json:"lessonId" validate:"required"`
	PathName       string `json:"pathName"`
	CompletedCount int    `json:"completedCount" validate:"min=0"`
}

// POST /api/progress
func (h *ProgressHandler) Record(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req progressRequest
	if !bindAndValidate(c, &req) {
		return
	}

	update, err := h.service.Record(requestContext(c), user.ID, services.ProgressInput{
		LessonID:       req.LessonID,
		PathName:       req.PathName,
		CompletedCount: req.CompletedCount,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, update)
}
