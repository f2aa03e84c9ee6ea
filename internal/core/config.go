// Package core contains the business logic for the onboarding assistant:
// configuration, the conversation session manager, the resource library
// and the company/employee auth flows.
package core

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// ConfigFileName is the name of the YAML configuration file in the base
// directory.
const ConfigFileName = ".onboardrc"

// objectIDPattern matches the 24-hex-character identifiers the backend issues.
var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsObjectID reports whether id looks like a backend-issued identifier.
func IsObjectID(id string) bool {
	return objectIDPattern.MatchString(id)
}

// ConfigurationManager defines the interface for loading and validating
// configuration from the .onboardrc file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		API: models.APIConfig{
			URL:     "http://localhost:8000/api",
			Timeout: 60 * time.Second,
		},
		Chat: models.ChatConfig{
			Welcome: true,
		},
		Resources: models.ResourcesConfig{
			WatchExtensions: []string{".pdf", ".txt", ".md", ".docx"},
		},
		Stub: models.StubConfig{
			Addr: ":8000",
		},
	}
}

// LoadGlobalConfig reads .onboardrc from the base path using Viper. If the
// file does not exist, defaults are returned. ONBOARD_API_URL overrides
// api.url.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("api.url", cfg.API.URL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("chat.test_company_id", cfg.Chat.TestCompanyID)
	v.SetDefault("chat.welcome", cfg.Chat.Welcome)
	v.SetDefault("resources.watch_extensions", cfg.Resources.WatchExtensions)
	v.SetDefault("stub.addr", cfg.Stub.Addr)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.API.URL = v.GetString("api.url")
	cfg.API.Timeout = v.GetDuration("api.timeout")
	cfg.Chat.TestCompanyID = v.GetString("chat.test_company_id")
	cfg.Chat.Welcome = v.GetBool("chat.welcome")
	cfg.Resources.WatchExtensions = v.GetStringSlice("resources.watch_extensions")
	cfg.Stub.Addr = v.GetString("stub.addr")

	if env := os.Getenv("ONBOARD_API_URL"); env != "" {
		cfg.API.URL = env
	}

	return cfg, nil
}

// ValidateConfig checks the provided configuration for invalid values and
// returns an error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	u, err := url.Parse(cfg.API.URL)
	switch {
	case cfg.API.URL == "":
		errs = append(errs, "api.url must not be empty")
	case err != nil || !u.IsAbs() || u.Host == "":
		errs = append(errs, fmt.Sprintf("api.url %q must be an absolute URL", cfg.API.URL))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Sprintf("api.url %q must use http or https", cfg.API.URL))
	}

	if cfg.API.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be positive, got %s", cfg.API.Timeout))
	}

	if cfg.Chat.TestCompanyID != "" && !IsObjectID(cfg.Chat.TestCompanyID) {
		errs = append(errs, fmt.Sprintf(
			"chat.test_company_id %q is invalid, must be 24 hex characters",
			cfg.Chat.TestCompanyID,
		))
	}

	for _, ext := range cfg.Resources.WatchExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Sprintf("resources.watch_extensions entry %q must look like .ext", ext))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
