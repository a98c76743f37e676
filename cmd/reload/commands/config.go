package commands

import (
	"github.com/mosaicnetworks/reload/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Reload config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Reload: *config.NewDefaultConfig(),
	}
}
