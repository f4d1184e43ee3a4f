package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds runtime settings read from the process environment.
type Env struct {
	// APIKey is the Roblox Open Cloud API key. The --api-key flag takes
	// precedence when both are set.
	APIKey string `env:"RBXSYNC_API_KEY"`

	// LogLevel is the zerolog level name (trace..error).
	LogLevel string `env:"RBXSYNC_LOG_LEVEL" envDefault:"info"`

	// LogFormat is "console" or "json".
	LogFormat string `env:"RBXSYNC_LOG_FORMAT" envDefault:"console"`
}

// LoadEnv parses runtime settings from the environment.
func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}
