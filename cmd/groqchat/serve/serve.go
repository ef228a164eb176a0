package servecmder

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/cmd/groqchat/settings"
	"github.com/papercomputeco/groqchat/pkg/config"
	"github.com/papercomputeco/groqchat/pkg/logger"
	"github.com/papercomputeco/groqchat/pkg/storage/inmemory"
	"github.com/papercomputeco/groqchat/server"
)

const serveLongDesc string = `Serve the browser chat UI.

Every browser gets its own session: transcript, model and token budget.
Sessions live in memory and are evicted after the configured idle time.

With --watch-secrets the secrets file is watched and a rotated API key is
picked up without a restart.

Examples:
  groqchat serve
  groqchat serve --listen 127.0.0.1:9000 --model llama-3.1-8b-instant
  groqchat serve --config ./groqchat.toml --watch-secrets`

const serveShortDesc string = "Serve the browser chat UI"

type serveCommander struct {
	configPath   string
	listen       string
	model        string
	maxTokens    int
	debug        bool
	watchSecrets bool

	// ready receives the bound address once the server is listening.
	ready func(addr net.Addr)
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default from config, :8080)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model for new sessions")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Token budget for new sessions")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.watchSecrets, "watch-secrets", false, "Reload the API key when the secrets file changes")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := settings.Resolve(c.configPath, settings.Overrides{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Listen:    c.listen,
		Debug:     c.debug,
	})
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	if cfg.APIKey == "" {
		log.Warn("no API key configured, chat requests will fail until one is set",
			zap.String("secrets_file", cfg.SecretsFile),
		)
	}

	srv, err := server.New(server.Config{
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		SessionIdle:   cfg.Server.SessionIdle,
		SweepInterval: cfg.Server.SweepInterval,
	}, settings.NewClient(cfg, log), inmemory.NewDriver(), log)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.Server.Listen, err)
	}
	if c.ready != nil {
		c.ready(ln.Addr())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.watchSecrets && cfg.SecretsFile != "" {
		go c.watch(ctx, cfg, srv, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.RunWithListener(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}

// watch swaps in a client with the new API key whenever the secrets file
// changes.
func (c *serveCommander) watch(ctx context.Context, cfg *config.Config, srv *server.Server, log *zap.Logger) {
	reload := func() {
		next := *cfg
		next.APIKey = ""
		key, err := next.ResolveAPIKey()
		if err != nil {
			log.Warn("could not reload API key", zap.Error(err))
			return
		}
		next.APIKey = key
		srv.SetClient(settings.NewClient(&next, log))
		log.Info("reloaded API key", zap.Bool("present", key != ""))
	}

	if err := config.Watch(ctx, cfg.SecretsFile, log, reload); err != nil {
		log.Warn("secrets watcher stopped", zap.Error(err))
	}
}
