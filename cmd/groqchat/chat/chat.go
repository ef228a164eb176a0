package chatcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/groqchat/cmd/groqchat/settings"
	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/logger"
	"github.com/papercomputeco/groqchat/pkg/tui"
)

const chatLongDesc string = `Chat with a Groq model in the terminal.

Replies stream in as they are generated. Switching models clears the
transcript. When stdin or stdout is not a terminal, a line-oriented prompt is
used instead of the full-screen UI; it accepts /model <id>, /tokens <n>,
/reset, /models and /quit. Start a line with // to send a prompt that begins
with a slash.

Examples:
  groqchat chat
  groqchat chat --model llama-3.3-70b-versatile --max-tokens 8192
  echo "Write a haiku about Go" | groqchat chat`

const chatShortDesc string = "Chat in the terminal"

type chatCommander struct {
	configPath string
	model      string
	maxTokens  int
	logFile    string
	debug      bool
	plain      bool
	style      string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to start with")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Token budget to start with")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file (logs are discarded otherwise)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Use the line-editing prompt instead of the full-screen UI")
	cmd.Flags().StringVar(&cmder.style, "style", "", "Markdown style: dark, light, notty, ... (default: detect)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := settings.Resolve(c.configPath, settings.Overrides{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Debug:     c.debug,
	})
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	log, closeLog, err := c.openLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	session := conversation.NewSession(uuid.NewString(), log)
	if _, err := session.SelectModel(cfg.Model); err != nil {
		return err
	}
	if _, err := session.SetBudget(cfg.MaxTokens); err != nil {
		return err
	}

	client := settings.NewClient(cfg, log)

	log.Info("chat started",
		zap.String("session", session.ID),
		zap.String("model", cfg.Model),
		zap.Int("max_tokens", session.Budget()),
	)

	interactive := isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout())
	switch {
	case !interactive:
		return tui.RunPlain(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session, client)
	case c.plain:
		return tui.RunLineEditor(ctx, cmd.OutOrStdout(), session, client)
	}

	return tui.Run(ctx, session, client, tui.Options{
		MarkdownStyle: c.style,
		Logger:        log,
	})
}

// openLogger logs to --log-file when given; the terminal belongs to the UI.
func (c *chatCommander) openLogger(debug bool) (*zap.Logger, func(), error) {
	if c.logFile == "" {
		return zap.NewNop(), func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file %s: %w", c.logFile, err)
	}

	log := logger.New(f, debug)
	return log, func() {
		_ = log.Sync()
		_ = f.Close()
	}, nil
}

func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
