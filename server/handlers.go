package server

import (
	"errors"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

// ModelRequest changes a session's model and/or token budget.
type ModelRequest struct {
	Model     string `json:"model"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
}

type pageData struct {
	Title     string
	Subtitle  string
	Models    []llm.Model
	Selected  llm.Model
	Budget    int
	MinBudget int
	Step      int
	Turns     []pageTurn
}

type pageTurn struct {
	Role llm.Role
	HTML template.HTML
}

// handlePage renders the chat page for the caller's session.
func (s *Server) handlePage(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return s.sessionError(c, err)
	}

	transcript := sess.Store().Snapshot()
	turns := make([]pageTurn, 0, len(transcript))
	for _, turn := range transcript {
		turns = append(turns, pageTurn{Role: turn.Role, HTML: s.markdown.renderTurn(turn)})
	}

	data := pageData{
		Title:     "Groq Chat",
		Subtitle:  "Chat with Groq models in real-time!",
		Models:    llm.Catalog(),
		Selected:  sess.Model(),
		Budget:    sess.Budget(),
		MinBudget: llm.MinTokenBudget,
		Step:      llm.TokenBudgetStep,
		Turns:     turns,
	}

	c.Type("html", "utf-8")
	if err := s.page.Execute(c.Response().BodyWriter(), data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}
	return nil
}

// handleModels returns the model catalog.
func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"default": llm.DefaultModelID,
		"models":  llm.Catalog(),
	})
}

// handleGetSession returns the caller's session.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(s.describe(sess))
}

// handleResetSession clears the caller's transcript.
func (s *Server) handleResetSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return s.sessionError(c, err)
	}

	if err := sess.Reset(); err != nil {
		return s.conflict(c, err)
	}

	s.logger.Info("session reset", zap.String("session", sess.ID))
	return c.JSON(s.describe(sess))
}

// handleSelectModel switches model and/or adjusts the token budget. A model
// change clears the transcript and restores the default budget before any
// requested budget is applied.
func (s *Server) handleSelectModel(c *fiber.Ctx) error {
	var req ModelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	sess, err := s.session(c)
	if err != nil {
		return s.sessionError(c, err)
	}

	if req.Model != "" {
		changed, err := sess.SelectModel(req.Model)
		if err != nil {
			var unknown conversation.ErrUnknownModel
			if errors.As(err, &unknown) {
				return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
					Error: err.Error(),
					Kind:  llm.KindModel,
				})
			}
			return s.conflict(c, err)
		}
		if changed {
			s.logger.Info("model selected",
				zap.String("session", sess.ID),
				zap.String("model", req.Model),
			)
		}
	}

	if req.MaxTokens != nil {
		if _, err := sess.SetBudget(*req.MaxTokens); err != nil {
			return s.conflict(c, err)
		}
	}

	return c.JSON(s.describe(sess))
}

func (s *Server) conflict(c *fiber.Ctx, err error) error {
	if errors.Is(err, conversation.ErrBusy) {
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	s.logger.Error("session update failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
}

func (s *Server) sessionError(c *fiber.Ctx, err error) error {
	s.logger.Error("failed to load session", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load session"})
}
