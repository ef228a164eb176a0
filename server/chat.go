package server

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

// ChatRequest submits a prompt for the caller's session.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// handleChat streams the reply to a prompt as newline-delimited JSON: one
// fragment chunk per piece of text, then a done chunk carrying the full reply
// or an error chunk. The assistant turn is committed only when the stream
// completes; a client that goes away mid-stream cancels the upstream call.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "prompt must not be empty",
			Kind:  llm.KindValidation,
		})
	}

	sess, err := s.session(c)
	if err != nil {
		return s.sessionError(c, err)
	}

	if sess.Streaming() {
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: conversation.ErrBusy.Error()})
	}

	client := s.completionClient()
	cfg := sess.RequestConfig()

	s.logger.Debug("received chat request",
		zap.String("session", sess.ID),
		zap.String("model", cfg.Model),
		zap.Int("max_tokens", cfg.MaxTokens),
		zap.Int("turn_count", sess.Store().Len()),
		zap.String("prompt_preview", truncate(req.Prompt, 50)),
	)

	// Set up streaming response headers
	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Cache-Control", "no-cache")
	c.Set("Transfer-Encoding", "chunked")

	ctx, cancel := context.WithCancel(s.ctx)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		write := func(chunk llm.StreamChunk) {
			if ctx.Err() != nil {
				return
			}
			if err := writeChunk(w, chunk); err != nil {
				s.logger.Debug("client went away mid-stream",
					zap.String("session", sess.ID),
					zap.Error(err),
				)
				cancel()
			}
		}

		reply, err := sess.Submit(ctx, client, req.Prompt, func(fragment string) {
			write(llm.StreamChunk{
				Type:    llm.ChunkFragment,
				Content: fragment,
				Turns:   sess.Store().Len(),
			})
		})
		if err != nil {
			write(llm.StreamChunk{
				Type:  llm.ChunkError,
				Error: err.Error(),
				Kind:  llm.KindOf(err),
				Turns: sess.Store().Len(),
			})
			return
		}

		write(llm.StreamChunk{
			Type:    llm.ChunkDone,
			Content: reply.Content,
			Turns:   sess.Store().Len(),
		})

		s.logger.Info("reply streamed",
			zap.String("session", sess.ID),
			zap.String("model", reply.Model),
			zap.Int("fragments", reply.Fragments),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

func writeChunk(w *bufio.Writer, chunk llm.StreamChunk) error {
	line, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
