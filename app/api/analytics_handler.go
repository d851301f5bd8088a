package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"wellrag/analytics"
	"wellrag/app/agent"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

const (
	insightUnavailable = "Start logging your symptoms to receive personalized insights. Every entry helps build a picture of your journey."
	insightFallback    = "Your wellness journey matters. Keep logging your symptoms and insights will grow with your data."
)

type AnalyticsHandler struct {
	logs      store.LogStore
	engine    *analytics.Engine
	generator agent.Generator
	window    int
	logger    *logging.Logger
}

func NewAnalyticsHandler(logs store.LogStore, engine *analytics.Engine, generator agent.Generator, window int, logger *logging.Logger) *AnalyticsHandler {
	if engine == nil {
		engine = analytics.NewEngine()
	}
	if window <= 0 {
		window = 30
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalyticsHandler{
		logs:      logs,
		engine:    engine,
		generator: generator,
		window:    window,
		logger:    logger,
	}
}

func (h *AnalyticsHandler) HandleGetAnalytics(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userID"))
	if userID == "" {
		return ErrInvalidID()
	}

	logs, err := h.logs.RecentLogs(c.UserContext(), userID, h.window)
	if err != nil {
		return err
	}
	return c.JSON(h.engine.Analyze(logs))
}

// HandleInsights answers with a generated summary, or a fixed encouragement
// when there is nothing to summarise or the generator fails.
func (h *AnalyticsHandler) HandleInsights(c *fiber.Ctx) error {
	var params types.InsightParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ctx := c.UserContext()
	logs, err := h.logs.RecentLogs(ctx, params.UserID, h.window)
	if err != nil {
		h.logger.Warn("failed to fetch logs for insight", "user", params.UserID, "error", err)
		return c.JSON(types.InsightResponse{Summary: insightUnavailable})
	}
	if len(logs) == 0 {
		return c.JSON(types.InsightResponse{Summary: agent.NoLogsInsight})
	}

	summary, err := h.generator.Generate(ctx, agent.ComposeInsightPrompt(logs))
	if err != nil {
		h.logger.Error("insight generation failed", "user", params.UserID, "error", err)
		summary = insightFallback
	}
	return c.JSON(types.InsightResponse{Summary: summary})
}
