package observability

import (
	"fmt"
	"time"
)

// Metrics holds counts derived from the event log.
type Metrics struct {
	MessagesSent         int            `json:"messages_sent"`
	RepliesFailed        int            `json:"replies_failed"`
	ConversationsCreated int            `json:"conversations_created"`
	WelcomesGenerated    int            `json:"welcomes_generated"`
	WelcomesFailed       int            `json:"welcomes_failed"`
	LoadFailures         int            `json:"load_failures"`
	ResourcesUploaded    int            `json:"resources_uploaded"`
	ResourcesAdded       int            `json:"resources_added"`
	ResourcesDeleted     int            `json:"resources_deleted"`
	Logins               map[string]int `json:"logins"`
	EventCount           int            `json:"event_count"`
	OldestEvent          *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent          *time.Time     `json:"newest_event,omitempty"`
}

// ReplyFailureRate returns the share of sent messages whose reply failed.
func (m *Metrics) ReplyFailureRate() float64 {
	if m.MessagesSent == 0 {
		return 0
	}
	return float64(m.RepliesFailed) / float64(m.MessagesSent)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{Logins: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "chat.message_sent":
			m.MessagesSent++
		case "chat.reply_failed":
			m.RepliesFailed++
		case "chat.conversation_created":
			m.ConversationsCreated++
		case "chat.welcome_generated":
			m.WelcomesGenerated++
		case "chat.welcome_failed":
			m.WelcomesFailed++
		case "chat.conversations_load_failed", "chat.messages_load_failed", "resource.list_failed":
			m.LoadFailures++
		case "resource.uploaded":
			m.ResourcesUploaded++
		case "resource.added":
			m.ResourcesAdded++
		case "resource.deleted":
			m.ResourcesDeleted++
		case "auth.login":
			if actor, ok := event.Data["actor"].(string); ok {
				m.Logins[actor]++
			}
		}
	}

	return m, nil
}
