package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kiln_controller/internal/service"
)

// Keys set on the gin context for handlers behind operatorMiddleware.
const (
	operatorCtxKey     = "operatorId"
	operatorNameCtxKey = "operatorName"
)

const (
	errAuthMissing     = "missing Authorization header"
	errAuthFormat      = "invalid Authorization header format"
	errAuthToken       = "invalid or expired token"
	errOperatorRemoved = "operator account no longer exists"
	errAuthUnavailable = "could not verify operator"
)

// operatorMiddleware admits requests whose bearer token belongs to an operator
// still present in the operators table. Tokens outlive account removal, so the
// signature alone is not enough.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	token, msg := bearerToken(c.GetHeader("Authorization"))
	if msg != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	op, err := h.services.Authenticate(token)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUserNotFound):
		if h.log != nil {
			h.log.Warnw("operator_token_orphaned", "path", c.FullPath())
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errOperatorRemoved})
		return
	case errors.Is(err, service.ErrInvalidToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthToken})
		return
	default:
		h.logAndJSONError(c, http.StatusServiceUnavailable, errAuthUnavailable, "operator_lookup_failed", err)
		c.Abort()
		return
	}

	c.Set(operatorCtxKey, op.ID)
	c.Set(operatorNameCtxKey, op.Username)
	c.Next()
}

// bearerToken extracts the token from an Authorization header. A non-empty
// message means the header is unusable.
func bearerToken(header string) (token, msg string) {
	if header == "" {
		return "", errAuthMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errAuthFormat
	}
	return parts[1], ""
}
