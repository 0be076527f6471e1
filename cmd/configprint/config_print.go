package configprint

import (
	"encoding/json"
	"fmt"
	"io"

	"firesync/cmd/cmdutil"
	"firesync/internal/config"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	sectionFlag string
	formatFlag  string
)

var ConfigPrintCmd = &cobra.Command{
	Use:   "config-print",
	Short: "Print the current configuration",
	Long: `Print the loaded configuration or a specific section of it.
Secrets (service account JSON, application password, database password, webhook secret) are never printed.
Supports YAML and JSON output formats.`,
	Example: `  # Print entire config
  firesync config-print

  # Print specific section
  firesync config-print --section firestore
  firesync config-print --section content_types

  # Print in YAML format
  firesync config-print --section taxonomies --format yaml`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	ConfigPrintCmd.Flags().StringVarP(&sectionFlag, "section", "s", "",
		"print only a specific section (firestore, cms, taxonomies, content_types, postgres, webhook)")
	ConfigPrintCmd.Flags().StringVarP(&formatFlag, "format", "f", "json",
		"output format (yaml|json)")
}

func run(cmd *cobra.Command, _ []string) error {
	logger := log.Logger.With().Str("component", "config_print").Logger()

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	var output interface{}
	if sectionFlag == "" {
		output = cfg
		logger.Debug().Msg("Printing entire configuration")
	} else {
		output, err = getSection(cfg, sectionFlag)
		if err != nil {
			return err
		}
		logger.Debug().Str("section", sectionFlag).Msg("Printing configuration section")
	}

	return printOutput(cmd.OutOrStdout(), formatFlag, output)
}

func getSection(cfg *config.Config, section string) (interface{}, error) {
	switch section {
	case "firestore":
		return cfg.Firestore, nil
	case "cms":
		return cfg.CMS, nil
	case "taxonomies":
		return cfg.Taxonomies, nil
	case "content_types":
		return cfg.ContentTypes, nil
	case "postgres":
		return cfg.Postgres, nil
	case "webhook":
		return cfg.Webhook, nil
	case "concurrency":
		return map[string]int{"concurrency": cfg.Concurrency}, nil
	case "log_level":
		return map[string]string{"log_level": cfg.LogLevel}, nil
	case "id":
		return map[string]string{"id": cfg.ID}, nil
	default:
		return nil,
			fmt.Errorf(
				"unknown section: %s (valid: firestore, cms, taxonomies, content_types, postgres, webhook, "+
					"concurrency, id, log_level)",
				section,
			)
	}
}

func printOutput(w io.Writer, format string, data interface{}) error {
	switch format {
	case "yaml":
		bytes, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		_, err = w.Write(bytes)
		return err
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
	}
}
