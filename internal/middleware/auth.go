package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/steamsedu/steams/internal/auth"
	"github.com/steamsedu/steams/pkg/errors"
	"github.com/steamsedu/steams/pkg/response"
)

const (
	CtxPrincipalKey = "authPrincipal"
	CtxUserIDKey    = "userID"
)

// Auth resolves the caller through identity and rejects anonymous requests.
// Tokens are read from the Authorization header or, for websocket clients,
// from the token query parameter.
func Auth(identity iauth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := iauth.TokenFromRequest(c.Request)
		if token == "" || identity == nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal, err := identity.Authenticate(token)
		if err != nil || principal.ID == "" {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxPrincipalKey, principal)
		c.Set(CtxUserIDKey, principal.ID)
		c.Next()
	}
}

// CurrentUser returns the principal stored by Auth.
func CurrentUser(c *gin.Context) (iauth.Principal, bool) {
	value, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return iauth.Principal{}, false
	}
	principal, ok := value.(iauth.Principal)
	if !ok || principal.ID == "" {
		return iauth.Principal{}, false
	}
	return principal, true
}
