package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"wellrag/app/agent"
	"wellrag/guard"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

// Apology is the reply when the generator cannot be reached.
const Apology = "I'm having trouble connecting right now. Please try again in a moment."

const saveTimeout = 5 * time.Second

type ContextBuilder interface {
	BuildContext(ctx context.Context, userID, message string) types.PromptContext
}

type AssistantHandler struct {
	builder   ContextBuilder
	generator agent.Generator
	memory    store.HistoryStore
	logger    *logging.Logger
}

func NewAssistantHandler(builder ContextBuilder, generator agent.Generator, memory store.HistoryStore, logger *logging.Logger) *AssistantHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AssistantHandler{
		builder:   builder,
		generator: generator,
		memory:    memory,
		logger:    logger,
	}
}

func (h *AssistantHandler) HandleAssistant(c *fiber.Ctx) error {
	var params types.AssistantParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	ctx := c.UserContext()
	pc := h.builder.BuildContext(ctx, params.UserID, params.Message)

	if pc.State == types.StateDomainRejected {
		return c.JSON(types.AssistantResponse{
			Reply:     guard.RefusalMessage,
			Citations: []types.Citation{},
			State:     pc.State,
			Timestamp: time.Now(),
		})
	}

	prompt := agent.ComposePrompt(params.Message, pc)
	reply, err := h.generator.Generate(ctx, prompt)
	if err != nil {
		h.logger.Error("generation failed", "user", params.UserID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.AssistantResponse{
			Reply:     Apology,
			Citations: []types.Citation{},
			State:     pc.State,
			Missing:   pc.Missing,
			Timestamp: time.Now(),
		})
	}

	h.saveTurns(params.UserID, params.Message, reply)

	return c.JSON(types.AssistantResponse{
		Reply:     reply,
		Citations: citations(pc.RetrievedDocs),
		State:     pc.State,
		Missing:   pc.Missing,
		Timestamp: time.Now(),
	})
}

// saveTurns persists the exchange in the background. A failure is only logged.
func (h *AssistantHandler) saveTurns(userID, message, reply string) {
	if h.memory == nil {
		return
	}
	now := time.Now().UTC()
	turns := []types.ConversationTurn{
		{Role: types.RoleUser, Content: message, CreatedAt: now},
		{Role: types.RoleAssistant, Content: reply, CreatedAt: now.Add(time.Millisecond)},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := h.memory.SaveTurns(ctx, userID, turns...); err != nil {
			h.logger.Warn("failed to save chat history", "user", userID, "error", err)
		}
	}()
}

func citations(docs []types.DocumentChunk) []types.Citation {
	out := make([]types.Citation, 0, len(docs))
	for _, d := range docs {
		out = append(out, types.Citation{
			Title:      d.Title,
			Source:     d.Source,
			Content:    d.Text,
			Similarity: d.Similarity,
		})
	}
	return out
}
