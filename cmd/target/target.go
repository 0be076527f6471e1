package target

import (
	"fmt"
	"io"
	"strings"

	"firesync/cmd/cmdutil"
	"firesync/internal/config"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
)

var TargetCmd = &cobra.Command{
	Use:   "target",
	Short: "Enable, disable and list sync targets",
	Long: `Manage which taxonomies and content types are mirrored into Firestore.
Changes are written back to the configuration file.`,
}

var (
	orderField     string
	orderDirection string
	listFormat     string
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage taxonomy targets",
}

var taxonomyEnableCmd = &cobra.Command{
	Use:     "enable <slug>",
	Short:   "Enable sync for a taxonomy",
	Example: `firesync target taxonomy enable genre --order-field name --order-direction DESC`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		client, err := wiring.InitWordPress()
		if err != nil {
			return err
		}
		exists, err := client.TaxonomyExists(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to check taxonomy %s: %w", args[0], err)
		}
		if !exists {
			return fmt.Errorf("taxonomy %s does not exist", args[0])
		}

		err = wiring.InitTargetStore().EnableTaxonomy(config.TaxonomyConfig{
			Slug:           args[0],
			OrderField:     orderField,
			OrderDirection: orderDirection,
		})
		if err != nil {
			return err
		}
		log.Logger.Info().Str("component", "target-cmd").Str("target", args[0]).Msg("Enabled taxonomy")
		fmt.Fprintf(cmd.OutOrStdout(), "Taxonomy %s enabled\n", args[0])
		return nil
	},
}

var taxonomyDisableCmd = &cobra.Command{
	Use:   "disable <slug>",
	Short: "Disable sync for a taxonomy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		if err := wiring.InitTargetStore().DisableTaxonomy(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Taxonomy %s disabled\n", args[0])
		return nil
	},
}

var taxonomyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled taxonomies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cmdutil.ValidateFormat(listFormat); err != nil {
			return err
		}
		cfg, err := cmdutil.LoadConfig()
		if err != nil {
			return err
		}
		return cmdutil.Render(cmd.OutOrStdout(), listFormat, cfg.Taxonomies, func(w io.Writer) {
			writeTaxonomyTable(w, cfg.Taxonomies)
		})
	},
}

func init() {
	taxonomyEnableCmd.Flags().StringVar(&orderField, "order-field", config.DefaultOrderField, "term field to order by")
	taxonomyEnableCmd.Flags().StringVar(&orderDirection, "order-direction", "ASC", "term order direction (ASC|DESC)")
	taxonomyListCmd.Flags().StringVarP(&listFormat, "format", "f", cmdutil.FormatTable, "output format (table|json|yaml)")
	contentTypeListCmd.Flags().StringVarP(&listFormat, "format", "f", cmdutil.FormatTable, "output format (table|json|yaml)")

	taxonomyCmd.AddCommand(taxonomyEnableCmd)
	taxonomyCmd.AddCommand(taxonomyDisableCmd)
	taxonomyCmd.AddCommand(taxonomyListCmd)

	TargetCmd.AddCommand(taxonomyCmd)
	TargetCmd.AddCommand(contentTypeCmd)
}

func writeTaxonomyTable(w io.Writer, taxonomies []config.TaxonomyConfig) {
	if len(taxonomies) == 0 {
		fmt.Fprintln(w, "No taxonomies enabled.")
		return
	}
	table := cmdutil.NewTable(w, "Slug", "Order Field", "Order Direction")
	for _, t := range taxonomies {
		table.Append([]string{t.Slug, t.OrderField, t.OrderDirection})
	}
	table.Render()
}

func writeContentTypeTable(w io.Writer, contentTypes []config.ContentTypeConfig) {
	if len(contentTypes) == 0 {
		fmt.Fprintln(w, "No content types enabled.")
		return
	}
	table := cmdutil.NewTable(w, "Slug", "Fields", "Field Mapping")
	for _, c := range contentTypes {
		table.Append([]string{c.Slug, cmdutil.Dash(strings.Join(c.Fields, ", ")), cmdutil.Dash(formatMapping(c.FieldMapping))})
	}
	table.Render()
}
