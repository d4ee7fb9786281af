package goIdentity

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrConfigEnv wraps environment parsing failures.
var ErrConfigEnv = errors.New("goIdentity: parse config from environment")

// EnvOptions controls ConfigFromEnv.
type EnvOptions struct {
	// Prefix is prepended to every variable name, e.g. "IDENTITY_".
	Prefix string
	// DotEnvFiles are loaded before parsing. Missing files are ignored;
	// variables already set in the process environment win.
	DotEnvFiles []string
}

// ConfigFromEnv returns DefaultConfig overlaid with any variables present in
// the environment, e.g. IDENTITY_LOCKOUT_MAX_FAILED_ACCESS_ATTEMPTS=3 with
// Prefix "IDENTITY_". The result is validated.
func ConfigFromEnv(opts EnvOptions) (Config, error) {
	for _, file := range opts.DotEnvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigEnv, err)
		}
	}

	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: opts.Prefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigEnv, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
