package api

import "github.com/gin-gonic/gin"

// NewRouter assembles the HTTP surface. Auth endpoints are always open;
// everything else sits behind the auth middleware, which only enforces
// once an admin password has been configured.
func NewRouter(h *Handler, auth *AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", auth.LoginHandler)
		authGroup.POST("/setup", auth.SetupHandler)
		authGroup.POST("/logout", auth.LogoutHandler)
		authGroup.GET("/status", auth.StatusHandler)
	}

	apiGroup := r.Group("/api")
	apiGroup.Use(auth.RequireAuth())
	{
		apiGroup.POST("/print/text", h.PrintText)
		apiGroup.POST("/print/latex", h.PrintLatex)
		apiGroup.POST("/print/image", h.PrintImage)
		apiGroup.POST("/cut", h.Cut)
		apiGroup.GET("/status", h.Status)
		apiGroup.GET("/settings", h.GetSettings)
		apiGroup.PUT("/settings", h.UpdateSettings)
		apiGroup.GET("/jobs", h.ListJobs)
		apiGroup.GET("/jobs/stats", h.JobStats)
	}

	return r
}
