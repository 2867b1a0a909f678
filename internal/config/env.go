package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvDefaults are the launcher's environment overrides. They only seed flag
// defaults; an explicit flag always wins.
type EnvDefaults struct {
	Workspace   string  `env:"RATCO_WORKSPACE"`
	Investment  float64 `env:"RATCO_INVESTMENT" envDefault:"3.0"`
	MaxRounds   int     `env:"RATCO_MAX_ROUNDS" envDefault:"5"`
	ReqaFile    string  `env:"RATCO_REQA_FILE"`
	RecoverPath string  `env:"RATCO_RECOVER_PATH"`
}

// LoadEnvDefaults parses EnvDefaults from the process environment.
func LoadEnvDefaults() (EnvDefaults, error) {
	cfg, err := env.ParseAs[EnvDefaults]()
	if err != nil {
		return EnvDefaults{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
