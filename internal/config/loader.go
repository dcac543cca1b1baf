package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
)

// EnvPrefix prefixes environment overrides, e.g. COMMITGEN_AI_PROVIDER.
const EnvPrefix = "COMMITGEN"

var (
	// envVarPattern matches ${VAR} or ${VAR:-default}
	envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	// simpleEnvVarPattern matches $VAR
	simpleEnvVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
	notices     []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	for _, p := range paths {
		if p != "" {
			l.searchPaths = append(l.searchPaths, p)
		}
	}
	return l
}

// Notices returns informational messages gathered while loading, such as
// which AI provider was auto-detected.
func (l *Loader) Notices() []string {
	return l.notices
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if !l.configFileExists() {
		l.autoDetectAI()
	}

	if err := l.loadConfigFile(); err != nil {
		return nil, rperrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, rperrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	expandEnvVars(cfg)
	return cfg, nil
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("ai.provider", d.AI.Provider)
	l.v.SetDefault("ai.cloud_provider", d.AI.CloudProvider)
	l.v.SetDefault("ai.model", d.AI.Model)
	l.v.SetDefault("ai.base_url", d.AI.BaseURL)
	l.v.SetDefault("ai.api_key", d.AI.APIKey)
	l.v.SetDefault("ai.timeout", d.AI.Timeout)
	l.v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	l.v.SetDefault("ai.temperature", d.AI.Temperature)
	l.v.SetDefault("ai.retry_attempts", d.AI.RetryAttempts)
	l.v.SetDefault("ai.rate_limit_rpm", d.AI.RateLimitRPM)

	l.v.SetDefault("commit.max_header_length", d.Commit.MaxHeaderLength)
	l.v.SetDefault("commit.include_body", d.Commit.IncludeBody)

	l.v.SetDefault("cache.enabled", d.Cache.Enabled)
	l.v.SetDefault("cache.backend", d.Cache.Backend)
	l.v.SetDefault("cache.path", defaultCachePath())
	l.v.SetDefault("cache.ttl", d.Cache.TTL)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.color", d.Output.Color)
	l.v.SetDefault("output.verbose", d.Output.Verbose)
	l.v.SetDefault("output.log_level", d.Output.LogLevel)
	l.v.SetDefault("output.log_file", d.Output.LogFile)
}

// defaultCachePath places the sqlite cache under the user cache directory.
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".commitgen", "cache.db")
	}
	return filepath.Join(dir, "commitgen", "cache.db")
}

func (l *Loader) configFileExists() bool {
	if l.configPath != "" {
		_, err := os.Stat(l.configPath)
		return err == nil
	}
	_, err := findConfigFile(l.searchPaths)
	return err == nil
}

// autoDetectAI enables generation when a provider's credentials are in the
// environment and no config file says otherwise. Priority: OpenAI,
// Anthropic, Gemini, then a local Ollama host.
func (l *Loader) autoDetectAI() {
	type candidate struct {
		env      string
		provider ai.Provider
		cloud    string
	}
	candidates := []candidate{
		{env: "OPENAI_API_KEY", provider: ai.ProviderCloud, cloud: ai.CloudOpenAI},
		{env: "ANTHROPIC_API_KEY", provider: ai.ProviderCloud, cloud: ai.CloudAnthropic},
		{env: "GEMINI_API_KEY", provider: ai.ProviderCloud, cloud: ai.CloudGemini},
		{env: "OLLAMA_HOST", provider: ai.ProviderLocal},
	}

	var detected []string
	var selected *candidate
	for i, c := range candidates {
		if os.Getenv(c.env) == "" {
			continue
		}
		detected = append(detected, c.env)
		if selected == nil {
			selected = &candidates[i]
		}
	}
	if selected == nil {
		return
	}

	l.v.SetDefault("ai.provider", string(selected.provider))
	if selected.provider == ai.ProviderLocal {
		l.v.SetDefault("ai.base_url", "${OLLAMA_HOST}")
	} else {
		l.v.SetDefault("ai.cloud_provider", selected.cloud)
		l.v.SetDefault("ai.api_key", "${"+selected.env+"}")
	}

	name := string(selected.provider)
	if selected.cloud != "" {
		name = selected.cloud
	}
	l.notices = append(l.notices, fmt.Sprintf("AI provider %s auto-detected from %s", name, selected.env))
	if len(detected) > 1 {
		l.notices = append(l.notices, fmt.Sprintf(
			"multiple AI credentials detected (%s); set ai.provider to choose a different one",
			strings.Join(detected, ", ")))
	}
}

func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	path, err := findConfigFile(l.searchPaths)
	if err != nil {
		// no config file; defaults apply
		return nil
	}
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// expandEnvVars expands environment references in fields that commonly
// hold secrets or machine-specific paths.
func expandEnvVars(cfg *Config) {
	cfg.AI.APIKey = expandEnvVar(cfg.AI.APIKey)
	cfg.AI.BaseURL = expandEnvVar(cfg.AI.BaseURL)
	cfg.Cache.Path = expandEnvVar(cfg.Cache.Path)
	cfg.Output.LogFile = expandEnvVar(cfg.Output.LogFile)
}

// expandEnvVar expands ${VAR}, ${VAR:-default} and $VAR. Unset $VAR
// references are left as written.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if value := os.Getenv(submatch[1]); value != "" {
			return value
		}
		if len(submatch) > 2 {
			return submatch[2]
		}
		return ""
	})

	return simpleEnvVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		if value := os.Getenv(match[1:]); value != "" {
			return value
		}
		return match
	})
}

// ConfigFileUsed returns the path to the loaded config file, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// LoadFromDirectory loads configuration from a directory.
func LoadFromDirectory(dir string) (*Config, error) {
	return NewLoader().WithSearchPaths(dir).Load()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	return findConfigFile(searchPaths)
}

func findConfigFile(searchPaths []string) (string, error) {
	for _, searchPath := range searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					return configFile, nil
				}
			}
		}
	}
	return "", rperrors.NotFound("config.FindConfigFile", "no config file found")
}
