package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/groqchat/cmd/groqchat/chat"
	modelscmder "github.com/papercomputeco/groqchat/cmd/groqchat/models"
	servecmder "github.com/papercomputeco/groqchat/cmd/groqchat/serve"
)

const rootLongDesc string = `groqchat streams chat replies from Groq-hosted models.

Run "groqchat chat" for the terminal UI or "groqchat serve" for the browser UI.
The API key is read from GROQ_API_KEY, the api_key config setting, or the
GROQ_API_KEY entry of the secrets file, in that order.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "groqchat",
		Short:         "Chat with Groq models in real time",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
