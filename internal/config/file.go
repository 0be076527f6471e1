package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// UpdateFile applies update to the settings stored in the YAML file at path
// and writes them back. Only what the file holds and what update sets is
// written: defaults and environment overrides of the running process never
// reach the file.
func UpdateFile(path string, update func(v *viper.Viper)) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	fv.SetConfigType("yaml")
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	update(fv)
	if err := fv.WriteConfig(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
