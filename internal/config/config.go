package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Space key case policies.
const (
	CasePreserve = "preserve"
	CaseUpper    = "upper"
	CaseLower    = "lower"
)

// Config represents the full application configuration loaded from file/env.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Confluence ConfluenceConfig `mapstructure:"confluence"`
}

// ServerConfig holds server-specific options.
type ServerConfig struct {
	Name           string `mapstructure:"name"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	ProbeOnStartup bool   `mapstructure:"probe_on_startup"`
}

// ConfluenceConfig describes how to reach the Confluence Data Center instance.
type ConfluenceConfig struct {
	BaseURL     string         `mapstructure:"base_url"`
	AccessToken string         `mapstructure:"access_token"`
	VerifySSL   bool           `mapstructure:"verify_ssl"`
	ContextPath string         `mapstructure:"context_path"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	UserAgent   string         `mapstructure:"user_agent"`
	SpaceKeys   SpaceKeyConfig `mapstructure:"space_keys"`
}

// SpaceKeyConfig controls how space keys are cased before they are sent
// upstream. Data Center installs disagree on this, so it is not hard-coded.
type SpaceKeyConfig struct {
	Create string `mapstructure:"create"`
	Update string `mapstructure:"update"`
}

// envAliases maps config keys to the variable names used by existing
// deployments in addition to the prefixed CONFLUENCE_MCP_* form.
var envAliases = map[string][]string{
	"confluence.base_url":     {"CONFLUENCE_BASE_URL"},
	"confluence.access_token": {"CONFLUENCE_PERSONAL_ACCESS_TOKEN", "CONFLUENCE_ACCESS_TOKEN"},
	"confluence.verify_ssl":   {"CONFLUENCE_VERIFY_SSL"},
	"server.name":             {"MCP_SERVER_NAME"},
	"server.log_level":        {"LOG_LEVEL"},
}

// Load reads configuration from the provided directory or file, a .env file
// next to it (or in the working directory) and environment variables.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(dotEnvCandidates(path)...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			v.AddConfigPath(path)
		} else {
			v.SetConfigFile(path)
		}
	} else {
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("confluence_mcp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		prefixed := "CONFLUENCE_MCP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, aliases...)...); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.applyNetrcDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "confluence-dc-mcp")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.probe_on_startup", true)
	v.SetDefault("confluence.verify_ssl", true)
	v.SetDefault("confluence.context_path", "/confluence")
	v.SetDefault("confluence.timeout", 30*time.Second)
	v.SetDefault("confluence.user_agent", "confluence-dc-mcp")
	v.SetDefault("confluence.space_keys.create", CasePreserve)
	v.SetDefault("confluence.space_keys.update", CasePreserve)
}

func dotEnvCandidates(path string) []string {
	candidates := []string{".env"}
	if path == "" {
		return candidates
	}

	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}
	if local := filepath.Join(dir, ".env"); local != ".env" {
		candidates = append([]string{local}, candidates...)
	}
	return candidates
}

// loadDotEnv loads every existing file; godotenv never overrides variables
// that are already present in the process environment.
func loadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Confluence.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("config: confluence.base_url is required"))
	} else if _, err := url.Parse(c.Confluence.BaseURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("config: invalid confluence.base_url %q: %w", c.Confluence.BaseURL, err))
	}

	if strings.TrimSpace(c.Confluence.AccessToken) == "" {
		result = multierror.Append(result, fmt.Errorf("config: confluence.access_token is required"))
	}

	if c.Confluence.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("config: confluence.timeout must be positive, got %s", c.Confluence.Timeout))
	}

	policies := []struct{ name, value string }{
		{"create", c.Confluence.SpaceKeys.Create},
		{"update", c.Confluence.SpaceKeys.Update},
	}
	for _, p := range policies {
		if !validCasePolicy(p.value) {
			result = multierror.Append(result, fmt.Errorf("config: confluence.space_keys.%s must be one of preserve, upper, lower; got %q", p.name, p.value))
		}
	}

	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	return result.ErrorOrNil()
}

func validCasePolicy(policy string) bool {
	switch policy {
	case "", CasePreserve, CaseUpper, CaseLower:
		return true
	}
	return false
}
