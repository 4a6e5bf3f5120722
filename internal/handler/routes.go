package handler

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts every route on e. auth guards the /api group and
// the logout route.
func (h *Handler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	// Public routes - no authentication required
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", MetricsHandler)

	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/google", h.GoogleLogin)
	authGroup.GET("/callback", h.GoogleCallback)
	authGroup.POST("/logout", h.Logout, auth)

	// API routes - all require a live session
	api := e.Group("/api")
	api.Use(auth)

	api.GET("/session", h.GetSession)
	api.POST("/session/activity", h.RecordActivity)
	api.GET("/session/notifications", h.Notifications)

	api.GET("/users/profile", h.GetProfile)

	organizations := api.Group("/organizations")
	organizations.POST("", h.CreateOrganization)
	organizations.GET("", h.ListOrganizations)
	organizations.GET("/:id", h.GetOrganization)

	areas := api.Group("/areas")
	areas.POST("", h.CreateArea)
	areas.GET("", h.ListAreas)
	areas.GET("/:id", h.GetArea)
	api.GET("/strategic-lines", h.StrategicLines)

	api.POST("/contributions", h.CreateContribution)
	api.GET("/contributions", h.ListContributions)

	objectives := api.Group("/objectives")
	objectives.POST("", h.CreateObjective)
	objectives.GET("", h.ListObjectives)
	objectives.POST("/suggestions", h.SuggestObjectives)

	api.POST("/initiatives", h.CreateInitiative)
	api.GET("/initiatives", h.ListInitiatives)

	api.GET("/experts", h.Experts)
	api.POST("/perspectives", h.CreatePerspective)
	api.GET("/perspectives", h.ListPerspectives)

	api.POST("/strategy-notes", h.CreateNote)
	api.GET("/strategy-notes", h.ListNotes)

	api.GET("/dashboard", h.Dashboard)
}
