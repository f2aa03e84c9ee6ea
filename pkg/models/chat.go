package models

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a citation from an assistant message back to the resource it
// was drawn from. ResourceID is a weak reference; the resource is not owned.
type Source struct {
	Type       ResourceType `json:"type"`
	Title      string       `json:"title"`
	Excerpt    string       `json:"excerpt,omitempty"`
	ResourceID string       `json:"resourceId,omitempty"`
	FileName   string       `json:"fileName,omitempty"`
	URL        string       `json:"url,omitempty"`
}

// Message is a single append-only entry in a conversation. Local marks a
// message that exists only client-side and was never persisted.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Local          bool      `json:"-"`
}

// Conversation is an ordered thread of messages scoped to one company.
type Conversation struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// RAGAnswer is the answer returned by the retrieval-augmented query endpoint
// and by welcome generation.
type RAGAnswer struct {
	Content string
	Sources []Source
}

// WelcomeRequest carries the employee profile used to personalize the
// first-session welcome message.
type WelcomeRequest struct {
	CompanyID    string        `json:"companyId"`
	EmployeeName string        `json:"employeeName,omitempty"`
	Department   string        `json:"department,omitempty"`
	Tags         *EmployeeTags `json:"tags,omitempty"`
}
