package stats

import (
	"fmt"
	"io"
	"strconv"

	"firesync/cmd/cmdutil"
	"firesync/internal/service/orchestrator"

	"github.com/spf13/cobra"
)

var formatFlag string

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count the entities behind every configured target",
	Long: `List every configured taxonomy with its term count and every configured content type
with its published item count, as read from WordPress.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	StatsCmd.Flags().StringVarP(&formatFlag, "format", "f", cmdutil.FormatTable, "output format (table|json|yaml)")
}

func run(cmd *cobra.Command, _ []string) error {
	if err := cmdutil.ValidateFormat(formatFlag); err != nil {
		return err
	}
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	ctx := cmd.Context()
	o, err := wiring.InitOrchestrator(ctx)
	if err != nil {
		return err
	}
	stats, err := o.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}
	return cmdutil.Render(cmd.OutOrStdout(), formatFlag, stats, func(w io.Writer) {
		WriteTable(w, stats)
	})
}

func WriteTable(w io.Writer, stats []orchestrator.TargetStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No targets configured.")
		return
	}
	table := cmdutil.NewTable(w, "Kind", "Target", "Exists", "Count", "Error")
	total := 0
	for _, s := range stats {
		total += s.Count
		table.Append([]string{string(s.Kind), s.Slug, strconv.FormatBool(s.Exists), strconv.Itoa(s.Count), cmdutil.Dash(s.Error)})
	}
	table.SetFooter([]string{"", "", "", strconv.Itoa(total), ""})
	table.Render()
}
