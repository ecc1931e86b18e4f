package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipewise/pipewise/internal/agent"
	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/runtime"
	"github.com/pipewise/pipewise/internal/store"
)

// AgentsHandler exposes the analysis pipeline: trigger a run, inspect
// past executions, and manage per-user agent configuration.
type AgentsHandler struct {
	Store    *store.Store
	Pipeline *agent.Pipeline
	Cache    *ResultCache
}

func (h *AgentsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/:type/run", h.run)
	g.GET("/executions", h.executions)
	g.PUT("/config", h.upsertConfig)
}

// run triggers one analysis pipeline invocation
//
//	@Summary	Run agent
//	@Tags		agents
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		type	path	string			true	"Agent type"
//	@Param		payload	body	RunAgentRequest	true	"Run options"
//	@Param		refresh	query	bool			false	"Bypass the result cache"
//	@Produce	json
//	@Success	200	{object}	agent.Result
//	@Failure	400	{object}	HTTPError
//	@Failure	401	{object}	AuthRequiredResponse
//	@Router		/api/agents/{type}/run [post]
func (h *AgentsHandler) run(c echo.Context) error {
	userID := c.Get("user_id").(string)
	t, err := agent.ParseType(c.Param("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req RunAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	platform := req.Platform
	if platform == "" {
		platform = crm.PlatformNative
	}

	refresh, _ := strconv.ParseBool(c.QueryParam("refresh"))
	if !refresh && !req.EnableActions {
		if raw, ok := h.Cache.Get(c.Request().Context(), userID, string(t), platform); ok {
			return c.JSONBlob(http.StatusOK, raw)
		}
	}

	res, err := h.Pipeline.Run(c.Request().Context(), userID, t, agent.Request{
		Platform:      platform,
		EnableActions: req.EnableActions,
		Limit:         req.Limit,
	})
	if err != nil {
		if errors.Is(err, crm.ErrAuthRequired) {
			return c.JSON(http.StatusUnauthorized, AuthRequiredResponse{
				Error:        err.Error(),
				RequiresAuth: true,
				Platform:     platform,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.EnableActions {
		// Writes changed the underlying records; stale cache entries
		// would show pre-action scores.
		h.Cache.Invalidate(c.Request().Context(), userID, string(t), platform)
	} else {
		h.Cache.Set(c.Request().Context(), userID, string(t), platform, res)
	}
	return c.JSON(http.StatusOK, res)
}

// executions lists recent audit rows
//
//	@Summary	List executions
//	@Tags		agents
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Max rows (default 50)"
//	@Produce	json
//	@Success	200	{array}	executionResponse
//	@Router		/api/agents/executions [get]
func (h *AgentsHandler) executions(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListExecutions(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]executionResponse, len(items))
	for i, e := range items {
		out[i] = newExecutionResponse(e)
	}
	return c.JSON(http.StatusOK, out)
}

// upsertConfig stores the user's agent settings
//
//	@Summary	Upsert agent config
//	@Tags		agents
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Param		payload	body	AgentConfigRequest	true	"Agent config"
//	@Produce	json
//	@Success	200	{object}	IDResponse
//	@Failure	400	{object}	HTTPError
//	@Router		/api/agents/config [put]
func (h *AgentsHandler) upsertConfig(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req AgentConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := agent.ParseType(req.AgentType); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.Store.UpsertAgent(c.Request().Context(), store.AgentRecord{
		UserID:        userID,
		AgentType:     req.AgentType,
		Enabled:       req.Enabled,
		EnableActions: req.EnableActions,
		ScheduleCron:  req.ScheduleCron,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, IDResponse{ID: id})
}

type executionResponse struct {
	ID              string          `json:"id"`
	AgentType       string          `json:"agent_type"`
	Platform        string          `json:"platform"`
	Input           json.RawMessage `json:"input,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
	Confidence      float64         `json:"confidence"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	Status          string          `json:"status"`
	StartedAt       string          `json:"started_at"`
	CompletedAt     string          `json:"completed_at,omitempty"`
}

func newExecutionResponse(e store.Execution) executionResponse {
	resp := executionResponse{
		ID:              e.ID,
		AgentType:       e.AgentType,
		Platform:        e.Platform,
		Input:           e.Input,
		Output:          e.Output,
		Confidence:      e.Confidence,
		ExecutionTimeMS: e.ExecutionTimeMS,
		Status:          e.Status,
		StartedAt:       e.StartedAt.UTC().Format(time.RFC3339),
	}
	if e.CompletedAt != nil {
		resp.CompletedAt = e.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
