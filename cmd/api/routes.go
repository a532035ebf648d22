package main

import (
	"callgrid/internal/auth"
	"callgrid/internal/httpapi"
	"callgrid/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	v1.POST("/auth/login", h.Login)

	// protected API group
	protected := v1.Group("")
	protected.Use(authMW)
	{
		protected.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// CALL routes. Clients open and withdraw calls; responders answer;
		// supervisors force-escalate and read the escalation chain.
		calls := protected.Group("/calls")
		{
			calls.POST("", rbac.RequireAnyRole(rbac.RoleClient), h.InitiateCall)
			calls.POST("/:call_id/cancel", rbac.RequireAnyRole(rbac.RoleClient, rbac.RoleSupervisor), h.CancelCall)
			calls.POST("/:call_id/answer", rbac.RequireAnyRole(rbac.RoleResponder), h.AnswerCall)
			calls.POST("/:call_id/escalate", rbac.RequireAnyRole(rbac.RoleSupervisor), h.EscalateCall)
			calls.GET("/:call_id", rbac.RequireAnyRole(rbac.RoleClient, rbac.RoleResponder, rbac.RoleSupervisor), h.GetCall)
			calls.GET("/:call_id/history", rbac.RequireAnyRole(rbac.RoleSupervisor), h.CallHistory)
		}

		// REPORT routes
		reports := protected.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleSupervisor))
		{
			reports.GET("/calls", h.CallsReport)
			reports.GET("/escalations", h.EscalationsReport)
		}
	}
}
