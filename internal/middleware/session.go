package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-console/internal/service"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
	"github.com/noah-isme/enrollment-console/pkg/response"
)

// ContextActorKey is the gin context key storing the acting user.
const ContextActorKey = "currentActor"

type sessionResolver interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUser(ctx context.Context) string
}

// Session forwards the caller's bearer token to upstream calls through the
// request context and records the acting user. With required set, requests
// that end up without any credential are rejected.
func Session(session sessionResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			bearer := len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != ""
			switch {
			case bearer:
				ctx = service.WithCredential(ctx, strings.TrimSpace(parts[1]))
				c.Request = c.Request.WithContext(ctx)
			case required:
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
				return
			}
			// other schemes are not forwarded when enforcement is off
		}

		if required && !session.IsAuthenticated(ctx) {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			return
		}

		c.Set(ContextActorKey, session.CurrentUser(ctx))
		c.Next()
	}
}
