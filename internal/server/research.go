package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/seeker/internal/engine"
	"github.com/mohammad-safakhou/seeker/internal/store"
	"github.com/mohammad-safakhou/seeker/models"
)

// Researcher is the engine surface the handler depends on.
type Researcher interface {
	Research(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// historyTurns caps how many persisted turns feed the model as context.
const historyTurns = 12

// ResearchHandler runs research turns and persists them to threads.
type ResearchHandler struct {
	Store  *store.Store
	Engine Researcher
	Logger *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("", h.research)
}

func (h *ResearchHandler) research(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	ctx := c.Request().Context()

	var history []models.ChatMessage
	if req.ThreadID != "" {
		msgs, err := h.Store.ListMessages(ctx, req.ThreadID, userID, 0)
		if err != nil {
			return storeError(err)
		}
		history = historyFromMessages(msgs)
	}

	res, err := h.Engine.Research(ctx, engine.Request{
		Query:        req.Query,
		History:      history,
		Deep:         req.Deep,
		Search:       req.Search,
		Thinking:     req.Thinking,
		CustomPrompt: req.CustomPrompt,
		Queries:      req.Queries,
	})
	if err != nil {
		return engineError(err)
	}

	resp := ResearchResponse{
		Answer:        res.Answer,
		Sources:       res.Sources,
		SearchQueries: res.SearchQueries,
		AutoApplied:   res.AutoApplied,
	}
	if resp.Sources == nil {
		resp.Sources = []engine.RankedDocument{}
	}

	if req.ThreadID != "" {
		if _, err := h.Store.InsertMessage(ctx, req.ThreadID, userID, "user", req.Query, nil); err != nil {
			h.Logger.Printf("persist user turn failed: %v", err)
		}
		var sources json.RawMessage
		if len(res.Sources) > 0 {
			sources, _ = json.Marshal(res.Sources)
		}
		msgID, err := h.Store.InsertMessage(ctx, req.ThreadID, userID, "assistant", res.Answer, sources)
		if err != nil {
			h.Logger.Printf("persist assistant turn failed: %v", err)
		} else {
			resp.MessageID = msgID
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// historyFromMessages maps persisted turns to chat history, keeping only the
// most recent window.
func historyFromMessages(msgs []store.Message) []models.ChatMessage {
	if len(msgs) > historyTurns {
		msgs = msgs[len(msgs)-historyTurns:]
	}
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func engineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrProviderExhausted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "research providers unavailable")
	default:
		var perr *engine.PlanningError
		if errors.As(err, &perr) {
			return echo.NewHTTPError(http.StatusBadGateway, "planning failed")
		}
		var serr *engine.SynthesisError
		if errors.As(err, &serr) {
			return echo.NewHTTPError(http.StatusBadGateway, "synthesis failed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
