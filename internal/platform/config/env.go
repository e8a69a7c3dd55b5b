// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable name so deployments
// can namespace the service's settings.
const Prefix = "BULLBEAR_"

// ParseEnv loads configuration from environment variables into target,
// applying the service prefix.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
