package cmd

import (
	"errors"
	"os"
	"strings"

	"firesync/cmd/configprint"
	"firesync/cmd/configset"
	"firesync/cmd/serve"
	"firesync/cmd/stats"
	"firesync/cmd/status"
	"firesync/cmd/sync"
	"firesync/cmd/target"
	"firesync/cmd/test"
	"firesync/cmd/version"
	"firesync/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	CFG_FLAG_NAME = "config"
)

var RootCmd = &cobra.Command{
	Use:   "firesync",
	Short: "Firesync mirrors WordPress content into Firestore",
	Long: `Firesync keeps a Firestore database in step with a WordPress site.
Each configured taxonomy becomes one document holding its ordered terms, and each published
item of a configured content type becomes one document holding the selected fields.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func SetVersionInfo(v, c, d, b string) {
	version.SetVersionInfo(v, c, d, b)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVarP(&cfgFile, CFG_FLAG_NAME, "c", "", "path to config file")

	_ = viper.BindPFlag(CFG_FLAG_NAME, RootCmd.PersistentFlags().Lookup(CFG_FLAG_NAME))
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("firesync")
	viper.AddConfigPath(".")               // For running from project root
	viper.AddConfigPath("/etc/firesync/")  // For production
	viper.AddConfigPath("$HOME/.firesync") // For user-specific config

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(target.TargetCmd)
	RootCmd.AddCommand(test.TestCmd)
	RootCmd.AddCommand(status.StatusCmd)
	RootCmd.AddCommand(stats.StatsCmd)
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(configprint.ConfigPrintCmd)
	RootCmd.AddCommand(configset.ConfigCmd)
	RootCmd.AddCommand(version.VersionCmd)
}

// initConfig reads the file named by --config, or the first config.yaml on
// the search path. A missing file is fine: everything can come from the
// environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Logger.Warn().Err(err).Msg("Failed to read configuration file")
		}
		return
	}
	log.Logger.Debug().Str("file", viper.ConfigFileUsed()).Msg("Loaded configuration file")
}
