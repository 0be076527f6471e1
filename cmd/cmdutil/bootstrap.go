package cmdutil

import (
	"fmt"

	"github.com/spf13/viper"

	"firesync/internal/config"
	"firesync/internal/core"
	"firesync/pkg/log"
)

// Bootstrap loads the configuration, initializes the global logger and
// returns the wiring root. Callers close the wiring when done.
func Bootstrap() (*core.Wiring, error) {
	appConfig, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("error creating config: %w", err)
	}
	log.Init(appConfig.ID, appConfig.LogLevel)
	return core.NewWiring(appConfig, viper.GetViper()), nil
}

// LoadConfig loads the configuration without building any component.
func LoadConfig() (*config.Config, error) {
	appConfig, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("error creating config: %w", err)
	}
	log.Init(appConfig.ID, appConfig.LogLevel)
	return appConfig, nil
}
