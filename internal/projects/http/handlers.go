package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-tracker/internal/auth"
	"github.com/GoSim-25-26J-441/project-tracker/internal/projects/domain"
)

func (h *Handler) list(c *gin.Context) {
	f := domain.Filter{
		Status: c.Query("status"),
		Client: c.Query("client"),
	}

	items, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) create(c *gin.Context) {
	body, ok := decodeBody(c)
	if !ok {
		return
	}

	p, err := h.svc.Create(c.Request.Context(), auth.UserID(c), domain.ParseInput(body))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	body, ok := decodeBody(c)
	if !ok {
		return
	}

	p, err := h.svc.Update(c.Request.Context(), auth.UserID(c), id, domain.ParseInput(body))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}

	res, err := h.svc.Delete(c.Request.Context(), auth.UserID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listClients(c *gin.Context) {
	items, err := h.svc.ListClients(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// fail writes the error body for err. Domain errors map onto 400, 403 and
// 404; anything else is logged and reported as a bare 500.
func (h *Handler) fail(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(de, domain.ErrInvalidArgument):
			status = http.StatusBadRequest
		case errors.Is(de, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(de, domain.ErrForbidden):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"ok": false, "code": de.Code, "error": de.Message})
		return
	}

	h.log.Error("projects request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "code": "internal", "error": "internal error"})
}

// projectID parses the :id path parameter. Anything that is not a positive
// integer cannot name a project, so it is answered with 404.
func projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found"})
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object. An empty body is treated as {}.
func decodeBody(c *gin.Context) (map[string]any, bool) {
	body := make(map[string]any)
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return body, true
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "invalid_body", "error": "invalid body"})
		return nil, false
	}
	if body == nil {
		body = make(map[string]any)
	}
	return body, true
}
