package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/llm"
	"github.com/papercomputeco/groqchat/pkg/storage"
)

const sessionCookie = "groqchat_session"

// SessionResponse describes a session to the browser.
type SessionResponse struct {
	ID        string         `json:"id"`
	Model     llm.Model      `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Streaming bool           `json:"streaming"`
	Turns     []TurnResponse `json:"turns"`
}

// TurnResponse is a transcript turn with its rendered HTML.
type TurnResponse struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
	HTML    string   `json:"html"`
}

// session returns the caller's session, creating one when the cookie is
// missing, malformed or refers to an evicted session. The cookie is reissued
// on every call so it expires together with the session's idle timeout.
func (s *Server) session(c *fiber.Ctx) (*conversation.Session, error) {
	sess, err := s.lookupSession(c)
	if err != nil {
		return nil, err
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(s.config.SessionIdle),
	})

	return sess, nil
}

func (s *Server) lookupSession(c *fiber.Ctx) (*conversation.Session, error) {
	ctx := c.UserContext()

	if id := c.Cookies(sessionCookie); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			sess, err := s.sessions.Get(ctx, id)
			if err == nil {
				sess.Touch()
				return sess, nil
			}
			var notFound storage.ErrNotFound
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	sess := s.newSession(uuid.NewString())
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Debug("created session", zap.String("session", sess.ID))

	return sess, nil
}

// newSession applies the configured model and budget to a fresh session.
func (s *Server) newSession(id string) *conversation.Session {
	sess := conversation.NewSession(id, s.logger)
	if s.config.Model != "" {
		if _, err := sess.SelectModel(s.config.Model); err != nil {
			s.logger.Warn("configured model rejected, using default",
				zap.String("model", s.config.Model),
				zap.Error(err),
			)
		}
	}
	if s.config.MaxTokens > 0 {
		if _, err := sess.SetBudget(s.config.MaxTokens); err != nil {
			s.logger.Warn("configured budget rejected, using default", zap.Error(err))
		}
	}
	return sess
}

func (s *Server) describe(sess *conversation.Session) SessionResponse {
	transcript := sess.Store().Snapshot()
	turns := make([]TurnResponse, 0, len(transcript))
	for _, turn := range transcript {
		turns = append(turns, TurnResponse{
			Role:    turn.Role,
			Content: turn.Content,
			HTML:    string(s.markdown.renderTurn(turn)),
		})
	}

	return SessionResponse{
		ID:        sess.ID,
		Model:     sess.Model(),
		MaxTokens: sess.Budget(),
		Streaming: sess.Streaming(),
		Turns:     turns,
	}
}
