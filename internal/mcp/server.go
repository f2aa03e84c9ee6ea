// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the onboarding assistant as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/internal/observability"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// Server wraps the chat session and resource library and exposes them as
// MCP tools.
type Server struct {
	server      *gomcp.Server
	chat        core.ChatSession
	resources   core.ResourceLibrary
	metricsCalc observability.MetricsCalculator

	// askMu serializes tool calls that move the chat selection.
	askMu sync.Mutex
}

// NewServer creates a new MCP server. resources and metricsCalc may be nil;
// the tools backed by them then report themselves unavailable.
func NewServer(chat core.ChatSession, resources core.ResourceLibrary, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		chat:        chat,
		resources:   resources,
		metricsCalc: metricsCalc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "onboard", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type askInput struct {
	Question       string `json:"question" jsonschema:"required,the question to ask the onboarding assistant"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"continue an existing conversation; a new one is started when empty"`
}

type sourceOutput struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	URL        string `json:"url,omitempty"`
}

type askOutput struct {
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer"`
	Sources        []sourceOutput `json:"sources"`
}

type listResourcesInput struct{}

type resourceOutput struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
	Created  string `json:"created,omitempty"`
}

type listResourcesOutput struct {
	Resources []resourceOutput `json:"resources"`
	Count     int              `json:"count"`
}

type listConversationsInput struct{}

type conversationOutput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages int    `json:"messages"`
	Created  string `json:"created,omitempty"`
}

type listConversationsOutput struct {
	Conversations []conversationOutput `json:"conversations"`
	Count         int                  `json:"count"`
}

type getMessagesInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"required,the conversation identifier"`
}

type messageOutput struct {
	ID      string         `json:"id"`
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Sources []sourceOutput `json:"sources,omitempty"`
	Created string         `json:"created,omitempty"`
}

type getMessagesOutput struct {
	ConversationID string          `json:"conversation_id"`
	Messages       []messageOutput `json:"messages"`
	Count          int             `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	MessagesSent         int            `json:"messages_sent"`
	RepliesFailed        int            `json:"replies_failed"`
	ConversationsCreated int            `json:"conversations_created"`
	WelcomesGenerated    int            `json:"welcomes_generated"`
	ResourcesUploaded    int            `json:"resources_uploaded"`
	Logins               map[string]int `json:"logins"`
	EventCount           int            `json:"event_count"`
	OldestEvent          string         `json:"oldest_event,omitempty"`
	NewestEvent          string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "ask",
		Description: "Ask the company's onboarding assistant a question. Returns the answer with the resources it cites.",
	}, s.handleAsk)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_resources",
		Description: "List the onboarding resources (files and links) of the logged-in company.",
	}, s.handleListResources)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_conversations",
		Description: "List the company's chat conversations with their message counts.",
	}, s.handleListConversations)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_messages",
		Description: "Get the messages of a conversation in chronological order.",
	}, s.handleGetMessages)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated usage metrics from the event log: messages, failed replies, welcomes, uploads.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleAsk(ctx context.Context, _ *gomcp.CallToolRequest, input askInput) (*gomcp.CallToolResult, askOutput, error) {
	if input.Question == "" {
		return errorResult("question is required"), askOutput{}, nil
	}

	s.askMu.Lock()
	defer s.askMu.Unlock()

	if err := s.chat.Select(ctx, input.ConversationID); err != nil {
		return errorResult(fmt.Sprintf("opening conversation %s: %s", input.ConversationID, err)), askOutput{}, nil
	}
	if err := s.chat.SendMessage(ctx, input.Question); err != nil {
		return errorResult(fmt.Sprintf("sending question: %s", err)), askOutput{}, nil
	}

	msgs := s.chat.Messages()
	if len(msgs) == 0 {
		return errorResult("no reply received"), askOutput{}, nil
	}
	reply := msgs[len(msgs)-1]
	if reply.Local {
		return errorResult(reply.Content), askOutput{}, nil
	}

	out := askOutput{
		ConversationID: s.chat.SelectedConversationID(),
		Answer:         reply.Content,
		Sources:        sourcesToOutput(reply.Sources),
	}
	return nil, out, nil
}

func (s *Server) handleListResources(ctx context.Context, _ *gomcp.CallToolRequest, _ listResourcesInput) (*gomcp.CallToolResult, listResourcesOutput, error) {
	if s.resources == nil {
		return errorResult("resource library not available"), listResourcesOutput{}, nil
	}

	res, err := s.resources.List(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("listing resources: %s", err)), listResourcesOutput{}, nil
	}

	out := listResourcesOutput{
		Resources: make([]resourceOutput, len(res)),
		Count:     len(res),
	}
	for i, r := range res {
		out.Resources[i] = resourceOutput{
			ID:       r.ID,
			Type:     string(r.Type),
			Title:    r.Title,
			Location: r.Location(),
			Created:  formatTime(r.CreatedAt),
		}
	}
	return nil, out, nil
}

func (s *Server) handleListConversations(ctx context.Context, _ *gomcp.CallToolRequest, _ listConversationsInput) (*gomcp.CallToolResult, listConversationsOutput, error) {
	if err := s.chat.LoadConversations(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading conversations: %s", err)), listConversationsOutput{}, nil
	}
	if err := s.chat.LastError(); err != nil {
		return errorResult(fmt.Sprintf("loading conversations: %s", err)), listConversationsOutput{}, nil
	}

	convs := s.chat.Conversations()
	out := listConversationsOutput{
		Conversations: make([]conversationOutput, len(convs)),
		Count:         len(convs),
	}
	for i, c := range convs {
		out.Conversations[i] = conversationOutput{
			ID:       c.ID,
			Title:    c.Title,
			Messages: len(c.Messages),
			Created:  formatTime(c.CreatedAt),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMessages(ctx context.Context, _ *gomcp.CallToolRequest, input getMessagesInput) (*gomcp.CallToolResult, getMessagesOutput, error) {
	if input.ConversationID == "" {
		return errorResult("conversation_id is required"), getMessagesOutput{}, nil
	}

	s.askMu.Lock()
	defer s.askMu.Unlock()

	if err := s.chat.Select(ctx, input.ConversationID); err != nil {
		return errorResult(fmt.Sprintf("getting messages of %s: %s", input.ConversationID, err)), getMessagesOutput{}, nil
	}
	if err := s.chat.LastError(); err != nil {
		return errorResult(fmt.Sprintf("getting messages of %s: %s", input.ConversationID, err)), getMessagesOutput{}, nil
	}

	msgs := s.chat.Messages()
	out := getMessagesOutput{
		ConversationID: input.ConversationID,
		Messages:       make([]messageOutput, len(msgs)),
		Count:          len(msgs),
	}
	for i, m := range msgs {
		out.Messages[i] = messageOutput{
			ID:      m.ID,
			Role:    string(m.Role),
			Content: m.Content,
			Sources: sourcesToOutput(m.Sources),
			Created: formatTime(m.CreatedAt),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		MessagesSent:         metrics.MessagesSent,
		RepliesFailed:        metrics.RepliesFailed,
		ConversationsCreated: metrics.ConversationsCreated,
		WelcomesGenerated:    metrics.WelcomesGenerated,
		ResourcesUploaded:    metrics.ResourcesUploaded,
		Logins:               metrics.Logins,
		EventCount:           metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

func sourcesToOutput(sources []models.Source) []sourceOutput {
	out := make([]sourceOutput, len(sources))
	for i, src := range sources {
		out[i] = sourceOutput{
			Type:       string(src.Type),
			Title:      src.Title,
			Excerpt:    src.Excerpt,
			ResourceID: src.ResourceID,
			FileName:   src.FileName,
			URL:        src.URL,
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{Logins: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time in the past.
func ParseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
