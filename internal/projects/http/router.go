package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	projects.GET("", h.list)
	projects.POST("", h.create)
	projects.GET("/:id", h.get)
	projects.PUT("/:id", h.update)
	projects.PATCH("/:id", h.update)
	projects.DELETE("/:id", h.delete)

	rg.GET("/clients", h.listClients)
}
