package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/docs"
	"github.com/mohammad-safakhou/hermes/internal/scheduler"
	"github.com/mohammad-safakhou/hermes/models"
)

const storeFailure = "the conversation could not be saved, please try again later"

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

func threadOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// Chat
//
//	@Summary	Ask the general assistant
//	@Tags		chat
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ChatRequest	true	"Message"
//	@Success	200		{object}	ChatResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	500		{object}	HTTPError
//	@Router		/api/chat [post]
func (h *handlers) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	thread := threadOrNew(req.ThreadID)
	reply, err := h.deps.Chat.Chat(c.Request().Context(), thread, req.Message)
	if err != nil {
		h.logger.Error("chat failed", zap.String("thread", thread), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, storeFailure).SetInternal(err)
	}
	return c.JSON(http.StatusOK, ChatResponse{ThreadID: thread, Reply: reply})
}

// Music
//
//	@Summary	Request a track
//	@Tags		music
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ChatRequest	true	"Request"
//	@Success	200		{object}	MusicResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	500		{object}	HTTPError
//	@Router		/api/music [post]
func (h *handlers) music(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	thread := threadOrNew(req.ThreadID)
	res, err := h.deps.Music.Run(c.Request().Context(), thread, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrThreadRequired) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("music run failed", zap.String("thread", thread), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, storeFailure).SetInternal(err)
	}
	return c.JSON(http.StatusOK, MusicResponse{
		ThreadID:   thread,
		Reply:      res.Reply,
		Artifact:   res.Artifact,
		Stage:      res.Stage,
		Iterations: res.Iterations,
	})
}

func (h *handlers) ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	ans, err := h.deps.Docs.Ask(c.Request().Context(), threadOrNew(req.ThreadID), req.Question)
	if err != nil {
		return docsError(err)
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *handlers) ingest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	res, err := h.deps.Docs.Ingest(c.Request().Context(), req.URL, req.Selector)
	if err != nil {
		return docsError(err)
	}
	return c.JSON(http.StatusAccepted, res)
}

func (h *handlers) similar(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	hits, err := h.deps.Docs.Similar(c.Request().Context(), req.Question)
	if err != nil {
		return docsError(err)
	}
	return c.JSON(http.StatusOK, SimilarResponse{Question: req.Question, Hits: hits})
}

func docsError(err error) error {
	switch {
	case errors.Is(err, docs.ErrEmptyIndex):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, docs.ErrEmptyDocument):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
	}
}

func (h *handlers) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.Jobs.Jobs())
}

func (h *handlers) cancelJob(c echo.Context) error {
	if err := h.deps.Jobs.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
