package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"tikdrop/internal/api"
	"tikdrop/internal/bot"
	"tikdrop/internal/fetch"
	"tikdrop/internal/lookup"
	"tikdrop/internal/transcode"
)

// Config is the full user-supplied configuration, sourced from an
// optional YAML file overlaid with environment variables.
type Config struct {
	Bot        bot.Config       `yaml:"bot"`
	Lookup     lookup.Config    `yaml:"lookup"`
	Fetch      fetch.Config     `yaml:"fetch"`
	Transcoder transcode.Config `yaml:"transcoder"`
	API        api.Config       `yaml:"api"`

	// WorkspaceDir is the scratch directory holding the files of the
	// acquisition currently in flight.
	WorkspaceDir string `yaml:"workspace_dir" env:"WORKSPACE_DIR" env-default:"./downloads" validate:"required"`
}

// Load reads the configuration from the given path, falling back to
// environment variables only when the file does not exist. The
// result is validated before being returned.
func (config *Config) Load(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, config); err != nil {
			return fmt.Errorf("failed to load configuration from '%s': %w", configPath, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(config); err != nil {
			return fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	} else {
		return fmt.Errorf("configuration path '%s' could not be accessed: %w", configPath, err)
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	return nil
}
