package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"listenlink/internal/presence"
	"listenlink/internal/rbac"
)

// Routes bundles what Register needs beyond the handlers themselves.
type Routes struct {
	Handlers Handlers
	Streamer Streamer

	// AuthMW verifies the bearer token and injects identity.
	AuthMW        gin.HandlerFunc
	CreateLimiter *UserRateLimiter
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// Register wires every API route onto r.
func Register(r gin.IRouter, rt Routes) {
	h := rt.Handlers

	r.GET("/healthz", Healthz)
	if rt.Metrics != nil {
		r.GET("/metrics", gin.WrapH(rt.Metrics))
	}

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	v1 := r.Group("/v1")
	v1.Use(rt.AuthMW)
	if h.Presence != nil {
		v1.Use(presence.Middleware(h.Presence))
	}
	{
		v1.GET("/users/:id", h.GetUser)

		callsGroup := v1.Group("/calls")
		{
			create := []gin.HandlerFunc{rbac.RequireCaller()}
			if rt.CreateLimiter != nil {
				create = append(create, rt.CreateLimiter.Middleware())
			}
			callsGroup.POST("/invitations", append(create, h.CreateInvitation)...)
			callsGroup.GET("/invitations/pending", h.PendingInvitations)
			callsGroup.GET("/invitations/:id", h.GetInvitation)
			callsGroup.PATCH("/invitations/:id", rbac.RequireCaller(), h.UpdateInvitation)
			callsGroup.GET("/history", h.CallHistory)
			callsGroup.GET("/stream", rt.Streamer.Stream)
		}

		chatGroup := v1.Group("/chat")
		{
			chatGroup.POST("/messages", rbac.RequireCaller(), h.SendMessage)
			chatGroup.GET("/threads/:id", h.Thread)
		}

		// Hidden support role is included explicitly; admin always passes.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleSupport))
		{
			admin.POST("/invitations/expire", h.ExpireStale)
			if h.Audit != nil {
				admin.GET("/invitations/:id/audit", h.AuditTrail)
			}
		}
	}
}
