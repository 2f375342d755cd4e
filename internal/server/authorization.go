package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	obscontext "github.com/smallbiznis/customsledger/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ActorContext copies the caller identity from the request headers into the
// request context, where authorization and audit read it.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		if actorID == "" && role == "" {
			c.Next()
			return
		}

		actorType := string(auditdomain.ActorTypeUser)
		if role == "system" {
			actorType = string(auditdomain.ActorTypeSystem)
		}
		ctx := obscontext.WithActor(c.Request.Context(), actorType, actorID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
