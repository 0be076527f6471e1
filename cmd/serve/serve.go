package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"firesync/cmd/cmdutil"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive WordPress webhooks and sync the affected documents",
	Long: `Start an HTTP server that turns content events posted by WordPress (item saved,
deleted or status changed, metadata and featured image changes, term changes, type
registration) into syncs. Runs until interrupted.`,
	Example: `firesync serve --config /etc/firesync/config.yaml`,
	Args:    cobra.NoArgs,
	RunE:    run,
}

func run(cmd *cobra.Command, _ []string) error {
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := wiring.InitWebhookServer(ctx)
	if err != nil {
		return err
	}

	logger := log.Logger.With().Str("component", "serve").Logger()
	logger.Info().Str("listen", wiring.GetConfig().Webhook.Listen).Msg("Starting webhook receiver")
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("webhook receiver stopped: %w", err)
	}
	logger.Info().Msg("Webhook receiver stopped")
	return nil
}
