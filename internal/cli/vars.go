package cli

import (
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	Auth      core.AuthService
	Resources core.ResourceLibrary

	// NewChatSession builds a chat session with the configured test
	// company and event logger applied. WelcomeEnabled is honored only
	// when the configuration allows the welcome flow.
	NewChatSession func(opts core.ChatSessionOptions) core.ChatSession

	WatchExtensions []string
	StubAddr        string
)

// MetricsCalc derives metrics from the event log. It is nil when the log
// could not be opened.
var MetricsCalc observability.MetricsCalculator
