package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/seeker/internal/store"
)

// SpacesHandler serves the research space / thread / message hierarchy.
type SpacesHandler struct {
	Store *store.Store
}

func (h *SpacesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.rename)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/threads", h.listThreads)
	g.POST("/:id/threads", h.createThread)
	g.GET("/:id/threads/:thread_id/messages", h.listMessages)
	g.DELETE("/:id/threads/:thread_id", h.deleteThread)
}

func (h *SpacesHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	spaces, err := h.Store.ListSpaces(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if spaces == nil {
		spaces = []store.Space{}
	}
	return c.JSON(http.StatusOK, spaces)
}

func (h *SpacesHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateSpaceRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	id, err := h.Store.CreateSpace(c.Request().Context(), userID, req.Title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *SpacesHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	sp, err := h.Store.GetSpace(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *SpacesHandler) rename(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req RenameSpaceRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	if err := h.Store.RenameSpace(c.Request().Context(), c.Param("id"), userID, req.Title); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *SpacesHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteSpace(c.Request().Context(), c.Param("id"), userID); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SpacesHandler) listThreads(c echo.Context) error {
	userID := c.Get("user_id").(string)
	threads, err := h.Store.ListThreads(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return storeError(err)
	}
	if threads == nil {
		threads = []store.Thread{}
	}
	return c.JSON(http.StatusOK, threads)
}

func (h *SpacesHandler) createThread(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateThreadRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	id, err := h.Store.CreateThread(c.Request().Context(), c.Param("id"), userID, req.Title)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *SpacesHandler) deleteThread(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteThread(c.Request().Context(), c.Param("thread_id"), userID); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SpacesHandler) listMessages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	msgs, err := h.Store.ListMessages(c.Request().Context(), c.Param("thread_id"), userID, limit)
	if err != nil {
		return storeError(err)
	}
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{ID: m.ID, Role: m.Role, Content: m.Content, Sources: m.Sources})
	}
	return c.JSON(http.StatusOK, out)
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
