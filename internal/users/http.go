package users

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lister is the read side of Repo used by the HTTP handler.
type Lister interface {
	ListByRoles(ctx context.Context, roles []string) ([]User, error)
}

type Handler struct {
	users Lister
	log   *zap.Logger
}

// Register attaches the user listing routes to rg.
func Register(rg *gin.RouterGroup, users Lister, log *zap.Logger) {
	h := &Handler{users: users, log: log}

	rg.GET("/project-managers", h.listManagers)
}

func (h *Handler) listManagers(c *gin.Context) {
	items, err := h.users.ListByRoles(c.Request.Context(), ManagerRoles)
	if err != nil {
		h.log.Error("list project managers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "code": "internal", "error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, items)
}
