package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	llmFileName   = "config2.yaml"
	llmBackupName = "config2.bak"
	llmEnvPrefix  = "RATCO_LLM_"
)

// LLMConfig describes the language-model provider the roles would talk to.
type LLMConfig struct {
	APIType string `koanf:"api_type" yaml:"api_type"`
	Model   string `koanf:"model" yaml:"model"`
	BaseURL string `koanf:"base_url" yaml:"base_url"`
	APIKey  string `koanf:"api_key" yaml:"api_key"`
}

// DefaultLLM returns the provider settings written by --init-config.
func DefaultLLM() LLMConfig {
	return LLMConfig{
		APIType: "openai",
		Model:   "gpt-4-turbo",
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "YOUR_API_KEY",
	}
}

// LLMConfigDir returns ~/.ratco.
func LLMConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ratco"
	}
	return filepath.Join(home, ".ratco")
}

// LLMConfigFile returns the well-known LLM provider file path.
func LLMConfigFile() string {
	return filepath.Join(LLMConfigDir(), llmFileName)
}

// InitResult reports what WriteDefaultLLMConfig did.
type InitResult struct {
	Path string
	// BackupPath is set when an existing file was moved aside.
	BackupPath string
}

// WriteDefaultLLMConfig writes the default LLM provider file to path. An
// existing file is renamed to config2.bak in the same directory first; it is
// never merged or overwritten in place.
func WriteDefaultLLMConfig(fs afero.Fs, path string) (InitResult, error) {
	res := InitResult{Path: path}
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return res, fmt.Errorf("failed to create config directory: %w", err)
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return res, fmt.Errorf("failed to check existing config: %w", err)
	}
	if exists {
		backup := filepath.Join(dir, llmBackupName)
		if err := fs.Rename(path, backup); err != nil {
			return res, fmt.Errorf("failed to back up existing config: %w", err)
		}
		res.BackupPath = backup
	}

	data, err := yaml.Marshal(struct {
		LLM LLMConfig `yaml:"llm"`
	}{LLM: DefaultLLM()})
	if err != nil {
		return res, fmt.Errorf("failed to encode config: %w", err)
	}

	header := "# ratco LLM provider configuration\n" +
		"# Replace api_key with your credential. RATCO_LLM_* environment\n" +
		"# variables override these values (e.g. RATCO_LLM_MODEL).\n\n"
	if err := afero.WriteFile(fs, path, append([]byte(header), data...), 0600); err != nil {
		return res, fmt.Errorf("failed to write config: %w", err)
	}
	return res, nil
}

// LoadLLMConfig reads the provider file at path (if it exists) over the
// defaults, then applies RATCO_LLM_* environment overrides.
func LoadLLMConfig(path string) (LLMConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
				return LLMConfig{}, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	// RATCO_LLM_API_KEY -> llm.api_key
	if err := k.Load(env.Provider(llmEnvPrefix, ".", func(s string) string {
		return "llm." + strings.ToLower(strings.TrimPrefix(s, llmEnvPrefix))
	}), nil); err != nil {
		return LLMConfig{}, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := DefaultLLM()
	if err := k.Unmarshal("llm", &cfg); err != nil {
		return LLMConfig{}, fmt.Errorf("failed to decode llm config: %w", err)
	}
	return cfg, nil
}
