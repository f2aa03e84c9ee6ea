// Package internal provides the App struct that wires all components of the
// onboarding assistant together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/onboard-ai/internal/cli"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/internal/integration"
	"github.com/valter-silva-au/onboard-ai/internal/observability"
	"github.com/valter-silva-au/onboard-ai/internal/storage"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// EventLogFileName is the JSONL event log in the base directory.
const EventLogFileName = ".onboard_events.jsonl"

// App holds all service dependencies of the onboarding assistant.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Session storage.SessionStore

	// Integration services
	API integration.APIClient

	// Core services
	Auth      core.AuthService
	Resources core.ResourceLibrary

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator

	logger core.EventLogger
}

// NewApp creates and wires all components. basePath is the directory holding
// .onboardrc, the persisted session and the event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	app.Session = storage.NewSessionStore(basePath)
	_ = app.Session.Load() // Non-fatal: an unreadable session means "not logged in".

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFileName))
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		app.logger = &eventLogAdapter{log: app.EventLog}
	}

	// --- Integration services ---
	app.API = integration.NewAPIClient(integration.APIClientConfig{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
		Token:   app.Session.Token,
	})

	// --- Core services ---
	app.Auth = core.NewAuthService(app.API, app.Session, app.logger)
	app.Resources = core.NewResourceLibrary(app.API, app.Session, app.logger)

	// --- Wire CLI package-level variables ---
	cli.Auth = app.Auth
	cli.Resources = app.Resources
	cli.NewChatSession = app.NewChatSession
	cli.WatchExtensions = cfg.Resources.WatchExtensions
	cli.StubAddr = cfg.Stub.Addr

	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// NewChatSession creates a chat session over the backend with the
// configured test company and event logger. The welcome flow runs only
// when the caller asks for it and chat.welcome allows it. Callers set the
// notification hooks.
func (a *App) NewChatSession(opts core.ChatSessionOptions) core.ChatSession {
	opts.TestCompanyID = a.Config.Chat.TestCompanyID
	opts.WelcomeEnabled = opts.WelcomeEnabled && a.Config.Chat.Welcome
	if opts.Logger == nil {
		opts.Logger = a.logger
	}
	return core.NewChatSession(a.API, a.Session, opts)
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base directory. It checks the ONBOARD_HOME
// env var, then the nearest ancestor of the working directory containing
// .onboardrc, then falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("ONBOARD_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	if err := a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   observability.LevelFor(eventType),
		Type:    eventType,
		Message: observability.MessageFor(eventType),
		Data:    data,
	}); err != nil {
		return fmt.Errorf("logging %s: %w", eventType, err)
	}
	return nil
}
