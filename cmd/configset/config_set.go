package configset

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"firesync/internal/auth"
	"firesync/internal/config"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Edit the configuration file",
}

var flags settings

var ConfigSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save Firestore connection settings to the configuration file",
	Long: `Write the given Firestore connection settings to the loaded configuration file.
Only the flags passed are changed. A service account file is checked before it is saved.
Defaults and values coming from the environment are never written to the file.`,
	Example: `  firesync config set --project-id demo --service-account /etc/firesync/sa.json
  firesync config set --emulator --emulator-host localhost --emulator-port 8080
  firesync config set --emulator=false`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	ConfigSetCmd.Flags().StringVar(&flags.ProjectID, "project-id", "", "Firestore project id")
	ConfigSetCmd.Flags().StringVar(&flags.DatabaseID, "database-id", "", "Firestore database id")
	ConfigSetCmd.Flags().StringVar(&flags.ServiceAccount, "service-account", "", "path to the service account key file")
	ConfigSetCmd.Flags().BoolVar(&flags.Emulator, "emulator", false, "connect to the Firestore emulator")
	ConfigSetCmd.Flags().StringVar(&flags.EmulatorHost, "emulator-host", "", "emulator host")
	ConfigSetCmd.Flags().IntVar(&flags.EmulatorPort, "emulator-port", 0, "emulator port")

	ConfigCmd.AddCommand(ConfigSetCmd)
}

type settings struct {
	ProjectID      string
	DatabaseID     string
	ServiceAccount string
	Emulator       bool
	EmulatorHost   string
	EmulatorPort   int
}

// settingKeys lists the keys config set may write, in output order.
var settingKeys = []string{
	"firestore.project_id",
	"firestore.database_id",
	"firestore.service_account_file",
	"firestore.emulator.enabled",
	"firestore.emulator.host",
	"firestore.emulator.port",
}

func run(cmd *cobra.Command, _ []string) error {
	return apply(cmd.OutOrStdout(), viper.ConfigFileUsed(), flags, cmd.Flags().Changed)
}

func apply(w io.Writer, path string, s settings, changed func(string) bool) error {
	logger := log.Logger.With().Str("component", "config_set").Logger()

	if path == "" {
		return &config.ConfigurationError{Message: "no configuration file loaded, pass --config"}
	}
	values, err := s.values(changed)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.New("nothing to set, pass at least one flag")
	}

	var updated []string
	err = config.UpdateFile(path, func(v *viper.Viper) {
		for _, key := range settingKeys {
			if value, ok := values[key]; ok {
				v.Set(key, value)
				updated = append(updated, key)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	logger.Info().Str("file", path).Strs("keys", updated).Msg("Updated configuration")
	fmt.Fprintf(w, "Updated %s in %s\n", strings.Join(updated, ", "), path)
	return nil
}

// values validates the passed flags and returns them by configuration key.
func (s settings) values(changed func(string) bool) (map[string]any, error) {
	values := map[string]any{}
	if changed("project-id") {
		if strings.TrimSpace(s.ProjectID) == "" {
			return nil, &config.ConfigurationError{Message: "project id must not be empty"}
		}
		values["firestore.project_id"] = s.ProjectID
	}
	if changed("database-id") {
		if strings.TrimSpace(s.DatabaseID) == "" {
			return nil, &config.ConfigurationError{Message: "database id must not be empty"}
		}
		values["firestore.database_id"] = s.DatabaseID
	}
	if changed("service-account") {
		if _, err := auth.LoadServiceAccountFile(s.ServiceAccount); err != nil {
			return nil, err
		}
		values["firestore.service_account_file"] = s.ServiceAccount
	}
	if changed("emulator") {
		values["firestore.emulator.enabled"] = s.Emulator
	}
	if changed("emulator-host") {
		if strings.TrimSpace(s.EmulatorHost) == "" {
			return nil, &config.ConfigurationError{Message: "emulator host must not be empty"}
		}
		values["firestore.emulator.host"] = s.EmulatorHost
	}
	if changed("emulator-port") {
		if s.EmulatorPort < 1 || s.EmulatorPort > 65535 {
			return nil, &config.ConfigurationError{Message: fmt.Sprintf("emulator port %d is out of range", s.EmulatorPort)}
		}
		values["firestore.emulator.port"] = s.EmulatorPort
	}
	return values, nil
}
