package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/services"
	appErrors "github.com/steamsedu/steams/pkg/errors"
	"github.com/steamsedu/steams/pkg/response"
)

// writeServiceError maps service sentinels onto the API error envelope.
func writeServiceError(c *gin.Context, err error) {
	response.Error(c, translateServiceError(err))
}

func translateServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrUnauthorized):
		return appErrors.ErrUnauthorized
	case errors.Is(err, services.ErrValidation):
		return appErrors.NewValidation(detailOf(err, services.ErrValidation))
	case errors.Is(err, services.ErrNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrPersistence):
		return appErrors.ErrServiceUnavailable.WithInternal(err)
	default:
		return appErrors.FromError(err)
	}
}

// detailOf strips the sentinel prefix so "validation failed: content is
// required" is reported as "content is required".
func detailOf(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	if msg == "" {
		return appErrors.ErrValidation.Message
	}
	return msg
}
