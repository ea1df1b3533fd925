package commands

import (
	"github.com/mosaicnetworks/surety/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Surety      config.Config `mapstructure:",squash"`
	WAMPCert    string        `mapstructure:"wamp-cert"`
	WAMPKey     string        `mapstructure:"wamp-key"`
	WAMPConnect string        `mapstructure:"wamp-connect"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Surety: *config.NewDefaultConfig(),
	}
}
