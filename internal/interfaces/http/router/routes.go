package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tesis/backend/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by ThesisAPI
type Handlers struct {
	Auth       *handler.AuthHandler
	Thesis     *handler.ThesisHandler
	Generation *handler.GenerationHandler
	Export     *handler.ExportHandler
	LLM        *handler.LLMHandler
	System     *handler.SystemHandler
}

// ThesisAPI returns the domain groups of the thesis API. authLimit is
// applied to the credential endpoints and may be nil.
func ThesisAPI(h Handlers, authLimit gin.HandlerFunc) []RouteRegistrar {
	auth := NewDomainGroup("auth", "/auth")
	credentials := auth.Group("credentials", "")
	if authLimit != nil {
		credentials.Use(authLimit)
	}
	credentials.
		POST("/register", h.Auth.Register).
		POST("/login", h.Auth.Login).
		POST("/refresh", h.Auth.RefreshToken)
	auth.
		POST("/logout", h.Auth.Logout).
		GET("/me", h.Auth.GetCurrentUser)

	theses := NewDomainGroup("theses", "/theses").
		POST("", h.Thesis.Create).
		GET("", h.Thesis.List).
		GET("/:id", h.Thesis.Get).
		PUT("/:id", h.Thesis.Update).
		DELETE("/:id", h.Thesis.Delete).
		PUT("/:id/sections/:name", h.Thesis.EditSection).
		POST("/:id/generate", h.Generation.Generate).
		POST("/:id/sections/:name/regenerate", h.Generation.RegenerateSection).
		GET("/:id/export", h.Export.Download).
		POST("/:id/exports", h.Export.Archive)

	llm := NewDomainGroup("llm", "/llm").
		GET("/providers", h.LLM.ListProviders).
		GET("/providers/:provider/models", h.LLM.ListModels)

	system := NewDomainGroup("system", "/system").
		GET("/ping", h.System.Ping).
		GET("/info", h.System.GetSystemInfo)

	return []RouteRegistrar{auth, theses, llm, system}
}
