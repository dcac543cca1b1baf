package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// File formats accepted by Marshal and WriteConfig.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// document is the on-disk shape. Durations are written as strings so the
// file reads "5s" rather than nanoseconds in every format.
func document(cfg *Config) map[string]any {
	aiSection := map[string]any{
		"provider":       cfg.AI.Provider,
		"cloud_provider": cfg.AI.CloudProvider,
		"timeout":        cfg.AI.Timeout.String(),
		"max_tokens":     cfg.AI.MaxTokens,
		"temperature":    cfg.AI.Temperature,
		"retry_attempts": cfg.AI.RetryAttempts,
		"rate_limit_rpm": cfg.AI.RateLimitRPM,
	}
	if cfg.AI.Model != "" {
		aiSection["model"] = cfg.AI.Model
	}
	if cfg.AI.BaseURL != "" {
		aiSection["base_url"] = cfg.AI.BaseURL
	}
	if cfg.AI.APIKey != "" {
		aiSection["api_key"] = cfg.AI.APIKey
	}

	cacheSection := map[string]any{
		"enabled": cfg.Cache.Enabled,
		"backend": cfg.Cache.Backend,
		"ttl":     cfg.Cache.TTL.String(),
	}
	if cfg.Cache.Path != "" {
		cacheSection["path"] = cfg.Cache.Path
	}

	outputSection := map[string]any{
		"format":    cfg.Output.Format,
		"color":     cfg.Output.Color,
		"verbose":   cfg.Output.Verbose,
		"log_level": cfg.Output.LogLevel,
	}
	if cfg.Output.LogFile != "" {
		outputSection["log_file"] = cfg.Output.LogFile
	}

	return map[string]any{
		"ai": aiSection,
		"commit": map[string]any{
			"max_header_length": cfg.Commit.MaxHeaderLength,
			"include_body":      cfg.Commit.IncludeBody,
		},
		"cache":  cacheSection,
		"output": outputSection,
	}
}

// Marshal encodes cfg in the given format (yaml or toml).
func Marshal(cfg *Config, format string) ([]byte, error) {
	const op = "config.Marshal"

	doc := document(cfg)
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, rperrors.ConfigWrap(err, op, "encode yaml")
		}
		return out, nil
	case FormatTOML:
		out, err := toml.Marshal(doc)
		if err != nil {
			return nil, rperrors.ConfigWrap(err, op, "encode toml")
		}
		return out, nil
	default:
		return nil, rperrors.Config(op, fmt.Sprintf("unsupported config format %q", format))
	}
}

// WriteConfig writes cfg to path, choosing the format from the extension.
// An existing file is only replaced when overwrite is set.
func WriteConfig(cfg *Config, path string, overwrite bool) error {
	const op = "config.WriteConfig"

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return rperrors.Config(op, fmt.Sprintf("%s already exists", path))
		}
	}

	data, err := Marshal(cfg, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return rperrors.IOWrap(err, op, "write config file")
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to path.
func WriteDefaultConfig(path string, overwrite bool) error {
	return WriteConfig(DefaultConfig(), path, overwrite)
}

// DefaultFileName returns the config file name for format.
func DefaultFileName(format string) string {
	if strings.ToLower(format) == FormatTOML {
		return ConfigFileNames[0] + ".toml"
	}
	return ConfigFileNames[0] + ".yaml"
}
