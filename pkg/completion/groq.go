package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1/"

	// DefaultTimeout bounds a whole request, including the streamed body.
	DefaultTimeout = 5 * time.Minute
)

// Options configures a GroqClient.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GroqClient implements Client against Groq's chat completions API.
type GroqClient struct {
	client  openai.Client
	hasKey  bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewGroqClient builds a client. An empty API key is accepted here so the
// process can start; every Stream call then fails with an *llm.AuthError.
func NewGroqClient(opts Options, logger *zap.Logger) *GroqClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		// Failed requests are resubmitted by the user, never by the client.
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &GroqClient{
		client:  openai.NewClient(reqOpts...),
		hasKey:  opts.APIKey != "",
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Stream implements Client.
func (c *GroqClient) Stream(ctx context.Context, cfg llm.RequestConfig, transcript []llm.Turn) (Stream, error) {
	if !c.hasKey {
		return nil, &llm.AuthError{Message: "missing API credential"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(cfg.Model),
		Messages:  buildMessages(transcript),
		MaxTokens: openai.Int(int64(cfg.MaxTokens)),
	}

	c.logger.Debug("starting completion stream",
		zap.String("model", cfg.Model),
		zap.Int("max_tokens", cfg.MaxTokens),
		zap.Int("turns", len(transcript)),
	)

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return &groqStream{
		stream: c.client.Chat.Completions.NewStreaming(streamCtx, params),
		ctx:    streamCtx,
		cancel: cancel,
	}, nil
}

func buildMessages(transcript []llm.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case llm.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	return messages
}

type groqStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	ctx     context.Context
	cancel  context.CancelFunc
	current string
	err     error
	done    bool
}

func (s *groqStream) Next() bool {
	if s.done {
		return false
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.current = text
			return true
		}
	}

	s.finish(s.stream.Err())
	return false
}

func (s *groqStream) Fragment() string {
	return s.current
}

func (s *groqStream) Err() error {
	return s.err
}

func (s *groqStream) Close() error {
	if !s.done {
		s.finish(nil)
	}
	return s.stream.Close()
}

func (s *groqStream) finish(err error) {
	s.done = true
	s.current = ""
	if err != nil {
		s.err = classify(s.ctx, err)
	}
	s.cancel()
}

// classify maps transport and provider failures onto the llm error taxonomy.
func classify(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &llm.CompletionError{Kind: llm.KindTimeout, Message: "request timed out", Err: err}
	case context.Canceled:
		return &llm.CompletionError{Kind: llm.KindCanceled, Message: "request canceled", Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return &llm.AuthError{Message: apiMessage(apiErr), Err: err}
		case apiErr.StatusCode == http.StatusNotFound || apiErr.Code == "model_not_found" || apiErr.Code == "model_decommissioned":
			return &llm.CompletionError{Kind: llm.KindModel, Message: apiMessage(apiErr), Err: err}
		default:
			return &llm.CompletionError{Kind: llm.KindProvider, Message: apiMessage(apiErr), Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &llm.CompletionError{Kind: llm.KindTimeout, Message: "request timed out", Err: err}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &llm.CompletionError{Kind: llm.KindMalformed, Message: "malformed response chunk", Err: err}
	}

	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &llm.CompletionError{Kind: llm.KindNetwork, Err: err}
	}

	return &llm.CompletionError{Kind: llm.KindProvider, Err: err}
}

func apiMessage(apiErr *openai.Error) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return http.StatusText(apiErr.StatusCode)
}
