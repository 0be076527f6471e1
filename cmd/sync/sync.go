package sync

import (
	"context"
	"fmt"
	"strconv"

	"firesync/cmd/cmdutil"
	"firesync/internal/service/orchestrator"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize WordPress content into Firestore",
	Long:  `Run a full resync, or sync a single taxonomy, content type or item.`,
}

var allCmd = &cobra.Command{
	Use:     "all",
	Short:   "Resync every configured taxonomy and content type",
	Long:    `Validate every configured target, drop the ones whose type no longer exists and write every document again.`,
	Example: `firesync sync all --config /path/to/config.yaml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, "sync all", func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error) {
			return o.SyncAll(ctx)
		})
	},
}

var taxonomyCmd = &cobra.Command{
	Use:     "taxonomy <slug>",
	Short:   "Rewrite the document of one taxonomy",
	Example: `firesync sync taxonomy genre`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "sync taxonomy", func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error) {
			return o.SyncTaxonomy(ctx, args[0])
		})
	},
}

var contentTypeCmd = &cobra.Command{
	Use:     "content-type <slug>",
	Short:   "Write every published item of one content type",
	Example: `firesync sync content-type book`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, "sync content-type", func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error) {
			return o.SyncContentType(ctx, args[0])
		})
	},
}

var entityCmd = &cobra.Command{
	Use:     "entity <content-type> <id>",
	Short:   "Sync one item, deleting its document when it is no longer published",
	Example: `firesync sync entity book 42`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return run(cmd, "sync entity", func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error) {
			return o.SyncEntity(ctx, args[0], id)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <content-type> <id>",
	Short:   "Delete the document of one item",
	Example: `firesync sync delete book 42`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return run(cmd, "sync delete", func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error) {
			return o.DeleteEntity(ctx, args[0], id)
		})
	},
}

func init() {
	SyncCmd.AddCommand(allCmd)
	SyncCmd.AddCommand(taxonomyCmd)
	SyncCmd.AddCommand(contentTypeCmd)
	SyncCmd.AddCommand(entityCmd)
	SyncCmd.AddCommand(deleteCmd)
}

type operation func(ctx context.Context, o *orchestrator.SyncOrchestrator) (*orchestrator.SyncResult, error)

func run(cmd *cobra.Command, name string, op operation) error {
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	logger := log.Logger.With().Str("component", "sync-cmd").Str("operation", name).Logger()
	logger.Info().Msg("Starting sync")

	ctx := cmd.Context()
	o, err := wiring.InitOrchestrator(ctx)
	if err != nil {
		return err
	}

	result, err := op(ctx, o)
	if err != nil {
		if result != nil {
			_ = cmdutil.PrintResult(cmd.OutOrStdout(), name, result)
		}
		return fmt.Errorf("error during %s: %w", name, err)
	}
	return cmdutil.PrintResult(cmd.OutOrStdout(), name, result)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", raw)
	}
	return id, nil
}
