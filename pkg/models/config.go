package models

import "time"

// APIConfig holds the backend connection settings.
type APIConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ChatConfig holds settings for the conversation session manager.
type ChatConfig struct {
	// TestCompanyID is a development fallback used when the persisted
	// session does not resolve a company.
	TestCompanyID string `yaml:"test_company_id,omitempty" mapstructure:"test_company_id"`
	Welcome       bool   `yaml:"welcome" mapstructure:"welcome"`
}

// ResourcesConfig holds settings for resource uploads.
type ResourcesConfig struct {
	WatchExtensions []string `yaml:"watch_extensions,omitempty" mapstructure:"watch_extensions"`
}

// StubConfig holds settings for the local stub backend.
type StubConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// GlobalConfig holds system-wide settings read from .onboardrc via Viper.
type GlobalConfig struct {
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Resources ResourcesConfig `yaml:"resources" mapstructure:"resources"`
	Stub      StubConfig      `yaml:"stub" mapstructure:"stub"`
}
