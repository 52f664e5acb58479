package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/steamsedu/steams/internal/auth"
	"github.com/steamsedu/steams/internal/middleware"
	appErrors "github.com/steamsedu/steams/pkg/errors"
	"github.com/steamsedu/steams/pkg/response"
)

// requestContext returns the request context, or Background for contexts
// built without a request.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// currentUser returns the authenticated caller. A bare user id stored under
// CtxUserIDKey is accepted when no principal is present.
func currentUser(c *gin.Context) (iauth.Principal, bool) {
	if principal, ok := middleware.CurrentUser(c); ok {
		return principal, true
	}
	if id := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey)); id != "" {
		return iauth.Principal{ID: id}, true
	}
	return iauth.Principal{}, false
}

// requireUser writes 401 and reports false for anonymous callers; no service
// is reached without an identity.
func requireUser(c *gin.Context) (iauth.Principal, bool) {
	principal, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return iauth.Principal{}, false
	}
	return principal, true
}
