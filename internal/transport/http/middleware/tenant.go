package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contaixt-gateway/internal/pkg/jwtutil"
	"contaixt-gateway/internal/transport/http/response"
)

const (
	ContextWorkspaceIDKey = "workspace_id"
	ContextSubjectKey     = "subject"
)

type TenantOptions struct {
	JWTSecret          string
	Required           bool
	DefaultWorkspaceID string
}

// ResolveTenant puts the caller's workspace id on the context. A verified
// token's workspace_id claim wins; otherwise the configured default is used.
func ResolveTenant(opts TenantOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := opts.DefaultWorkspaceID

		token, hasToken := bearerToken(c.GetHeader("Authorization"))
		switch {
		case hasToken && opts.JWTSecret != "":
			claims, err := jwtutil.ParseToken(opts.JWTSecret, token)
			if err != nil {
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
				c.Abort()
				return
			}
			if claims.WorkspaceID != "" {
				workspaceID = claims.WorkspaceID
			}
			c.Set(ContextSubjectKey, claims.Subject)
		case opts.Required:
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		if workspaceID == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "workspace could not be resolved")
			c.Abort()
			return
		}
		c.Set(ContextWorkspaceIDKey, workspaceID)
		c.Next()
	}
}

func WorkspaceID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextWorkspaceIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
