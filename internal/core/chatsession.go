package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

var (
	// ErrNoCompanyContext is returned by chat operations when neither the
	// persisted session nor the configured test identifier yields a company.
	ErrNoCompanyContext = errors.New("no company context: log in as a company or employee first")

	// ErrEmptyMessage is returned when a message has no content after trimming.
	ErrEmptyMessage = errors.New("message content is empty")
)

const (
	// WelcomeTitle is the title given to the conversation created by the
	// automatic welcome flow.
	WelcomeTitle = "Welcome to OnboardAI"

	// ReplyFailedText is the content of the local-only assistant message
	// shown when a reply could not be produced or persisted.
	ReplyFailedText = "Sorry, I couldn't process your request. Please try again."

	titleMaxRunes = 50

	// welcomeRetryBudget is how many failed welcome attempts are retried.
	welcomeRetryBudget = 1
)

// WelcomeState tracks the automatic welcome flow within one session.
type WelcomeState int

const (
	WelcomeNotAttempted WelcomeState = iota
	WelcomeInFlight
	WelcomeDone
	WelcomeFailed
)

func (w WelcomeState) String() string {
	switch w {
	case WelcomeNotAttempted:
		return "not_attempted"
	case WelcomeInFlight:
		return "in_flight"
	case WelcomeDone:
		return "done"
	case WelcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChatSessionOptions configures a ChatSession.
type ChatSessionOptions struct {
	// TestCompanyID is used when the session resolves no company.
	TestCompanyID string
	// WelcomeEnabled turns on the automatic welcome flow for employees.
	WelcomeEnabled bool
	// OnConversationCreated is called once for every conversation the
	// session creates on its own (first send with no selection, welcome).
	OnConversationCreated func(id string)
	// OnChange is called after any observable state change. It is never
	// called with the session lock held.
	OnChange func()
	Logger   EventLogger
	Now      func() time.Time
}

// ChatSession presents the active company's conversations and the
// selected conversation's messages, hiding the fetch/create/send
// choreography against the backend. All methods are safe for concurrent
// use; network calls are made without holding the state lock.
type ChatSession interface {
	CompanyID() (string, error)
	Sync(ctx context.Context) error
	LoadConversations(ctx context.Context) error
	Select(ctx context.Context, conversationID string) error
	CreateConversation(ctx context.Context, title string) (string, error)
	SendMessage(ctx context.Context, content string) error
	EvaluateWelcome(ctx context.Context) (bool, error)

	Conversations() []models.Conversation
	Messages() []models.Message
	SelectedConversationID() string
	IsLoading() bool
	WelcomeState() WelcomeState
	LastError() error
}

type chatSession struct {
	gateway ChatGateway
	session SessionContext
	opts    ChatSessionOptions

	mu            sync.Mutex
	conversations []models.Conversation
	messages      []models.Message
	selectedID    string
	loading       int
	loadedFor     string
	hydrated      bool
	loadGen       int
	// msgGen changes whenever the visible message list does; a message
	// fetch that started under an older value merges instead of replacing.
	msgGen  int
	lastErr error

	welcome         WelcomeState
	welcomeFailures int
	// welcomeConvID is a conversation created by a failed welcome attempt;
	// a retry reuses it instead of creating another.
	welcomeConvID string
}

// NewChatSession creates a ChatSession over the given gateway and session.
func NewChatSession(gateway ChatGateway, session SessionContext, opts ChatSessionOptions) ChatSession {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &chatSession{
		gateway:       gateway,
		session:       session,
		opts:          opts,
		conversations: []models.Conversation{},
		messages:      []models.Message{},
	}
}

// CompanyID resolves the owning company from the actor type: a company
// actor's own record, an employee's companyId, then the test identifier.
func (s *chatSession) CompanyID() (string, error) {
	switch s.session.ActorType() {
	case models.ActorCompany:
		if c, ok := s.session.GetActiveCompany(); ok && c.ID != "" {
			return c.ID, nil
		}
	case models.ActorEmployee:
		if e, ok := s.session.GetActiveEmployee(); ok && e.CompanyID != "" {
			return e.CompanyID, nil
		}
	}
	if s.opts.TestCompanyID != "" {
		return s.opts.TestCompanyID, nil
	}
	return "", ErrNoCompanyContext
}

// Sync reloads conversations if the resolved company changed since the
// last load, then evaluates the welcome flow.
func (s *chatSession) Sync(ctx context.Context) error {
	companyID, err := s.CompanyID()
	if err != nil {
		s.mu.Lock()
		s.conversations = []models.Conversation{}
		s.selectedID = ""
		s.messages = []models.Message{}
		s.msgGen++
		s.hydrated = false
		s.loadedFor = ""
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	changed := companyID != s.loadedFor || !s.hydrated
	s.mu.Unlock()

	if changed {
		if err := s.LoadConversations(ctx); err != nil {
			return err
		}
	}
	_, err = s.EvaluateWelcome(ctx)
	return err
}

// LoadConversations fetches the company's conversations and hydrates each
// with its messages. Any failure leaves the list empty rather than stale.
func (s *chatSession) LoadConversations(ctx context.Context) error {
	companyID, err := s.CompanyID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.loading++
	s.mu.Unlock()
	s.notify()
	defer s.endLoading()

	convs, err := s.hydrate(ctx, companyID)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.conversations = []models.Conversation{}
		s.hydrated = false
		s.loadedFor = ""
		s.lastErr = err
		s.mu.Unlock()
		s.logEvent("chat.conversations_load_failed", map[string]any{
			"company_id": companyID,
			"error":      err.Error(),
		})
		return nil
	}
	s.conversations = convs
	s.hydrated = true
	s.loadedFor = companyID
	s.lastErr = nil
	s.mu.Unlock()

	s.logEvent("chat.conversations_loaded", map[string]any{
		"company_id": companyID,
		"count":      len(convs),
	})
	return nil
}

func (s *chatSession) hydrate(ctx context.Context, companyID string) ([]models.Conversation, error) {
	convs, err := s.gateway.ListConversations(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		msgs, err := s.gateway.GetMessages(ctx, convs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("hydrating conversation %s: %w", convs[i].ID, err)
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		convs[i].Messages = msgs
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

// Select changes the selected conversation and replaces the message list
// with the backend's. A response that arrives after the selection moved on
// is discarded; one that arrives after messages were appended to the same
// selection is merged under them. An empty id clears the selection and
// evaluates the welcome flow.
func (s *chatSession) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.selectedID = conversationID
	s.messages = []models.Message{}
	s.msgGen++
	gen := s.msgGen
	if conversationID == "" {
		s.mu.Unlock()
		s.notify()
		_, err := s.EvaluateWelcome(ctx)
		return err
	}
	if i := s.indexLocked(conversationID); i >= 0 {
		s.messages = append(s.messages, s.conversations[i].Messages...)
	}
	s.mu.Unlock()
	s.notify()

	msgs, err := s.gateway.GetMessages(ctx, conversationID)

	s.mu.Lock()
	if s.selectedID != conversationID {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		if gen == s.msgGen {
			s.messages = []models.Message{}
		}
		s.lastErr = err
		s.mu.Unlock()
		s.logEvent("chat.messages_load_failed", map[string]any{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		s.notify()
		return nil
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	if gen != s.msgGen {
		msgs = mergeMessages(msgs, s.messages)
	}
	s.messages = msgs
	if i := s.indexLocked(conversationID); i >= 0 {
		s.conversations[i].Messages = backendOnly(msgs)
	}
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// mergeMessages returns fetched followed by every message of current that
// fetched does not already contain.
func mergeMessages(fetched, current []models.Message) []models.Message {
	seen := make(map[string]bool, len(fetched))
	out := make([]models.Message, 0, len(fetched)+len(current))
	for _, m := range fetched {
		seen[m.ID] = true
		out = append(out, m)
	}
	for _, m := range current {
		if !seen[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func backendOnly(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Local {
			out = append(out, m)
		}
	}
	return out
}

// CreateConversation creates a conversation for the active company and
// appends it to the local list. It does not change the selection.
func (s *chatSession) CreateConversation(ctx context.Context, title string) (string, error) {
	companyID, err := s.CompanyID()
	if err != nil {
		return "", err
	}
	conv, err := s.createConversation(ctx, companyID, title)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *chatSession) createConversation(ctx context.Context, companyID, title string) (*models.Conversation, error) {
	conv, err := s.gateway.CreateConversation(ctx, companyID, title)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	conv.Messages = []models.Message{}

	s.mu.Lock()
	s.conversations = append(s.conversations, *conv)
	s.lastErr = nil
	s.mu.Unlock()

	s.logEvent("chat.conversation_created", map[string]any{
		"company_id":      companyID,
		"conversation_id": conv.ID,
		"title":           conv.Title,
	})
	s.notify()
	return conv, nil
}

// adopt selects a conversation the session created itself and reports it
// through OnConversationCreated.
func (s *chatSession) adopt(conversationID string, announce bool) {
	s.mu.Lock()
	s.selectedID = conversationID
	s.messages = []models.Message{}
	s.msgGen++
	s.mu.Unlock()

	if announce && s.opts.OnConversationCreated != nil {
		s.opts.OnConversationCreated(conversationID)
	}
	s.notify()
}

// SendMessage persists the user's message, asks the assistant and persists
// its answer. With no selection a new conversation is created and selected
// first. Backend failures after that point are recovered by appending a
// local-only apology; they are not returned.
func (s *chatSession) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	companyID, err := s.CompanyID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loading++
	convID := s.selectedID
	s.mu.Unlock()
	s.notify()
	defer s.endLoading()

	if convID == "" {
		conv, err := s.createConversation(ctx, companyID, "")
		if err != nil {
			s.replyFailed("", err)
			return nil
		}
		convID = conv.ID
		s.adopt(convID, true)
	}

	userMsg, err := s.gateway.SendMessage(ctx, convID, content, models.RoleUser, nil)
	if err != nil {
		s.replyFailed(convID, err)
		return nil
	}
	if first := s.appendMessage(convID, *userMsg); first {
		s.setTitle(convID, DeriveTitle(content))
	}
	s.notify()

	answer, err := s.gateway.Query(ctx, content, companyID)
	if err != nil {
		s.replyFailed(convID, err)
		return nil
	}
	reply, err := s.gateway.SendMessage(ctx, convID, answer.Content, models.RoleAssistant, answer.Sources)
	if err != nil {
		s.replyFailed(convID, err)
		return nil
	}
	if len(reply.Sources) == 0 {
		reply.Sources = answer.Sources
	}
	s.appendMessage(convID, *reply)

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()

	s.logEvent("chat.message_sent", map[string]any{
		"company_id":      companyID,
		"conversation_id": convID,
		"sources":         len(reply.Sources),
	})
	s.notify()
	return nil
}

// appendMessage records a backend-confirmed message and reports whether the
// conversation had no local messages before it.
func (s *chatSession) appendMessage(convID string, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ConversationID == "" {
		msg.ConversationID = convID
	}

	var before int
	if convID == s.selectedID {
		before = len(s.messages)
		s.messages = append(s.messages, msg)
		s.msgGen++
	}
	if i := s.indexLocked(convID); i >= 0 {
		if convID != s.selectedID {
			before = len(s.conversations[i].Messages)
		}
		s.conversations[i].Messages = append(s.conversations[i].Messages, msg)
	}
	return before == 0
}

func (s *chatSession) setTitle(convID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(convID); i >= 0 && s.conversations[i].Title == "" {
		s.conversations[i].Title = title
	}
}

// replyFailed appends the local-only apology to the visible messages. It is
// never sent to the backend.
func (s *chatSession) replyFailed(convID string, cause error) {
	msg := models.Message{
		ID:             "local-" + uuid.New().String(),
		ConversationID: convID,
		Role:           models.RoleAssistant,
		Content:        ReplyFailedText,
		CreatedAt:      s.opts.Now(),
		Local:          true,
	}

	s.mu.Lock()
	if convID == s.selectedID {
		s.messages = append(s.messages, msg)
		s.msgGen++
	}
	s.lastErr = cause
	s.mu.Unlock()

	s.logEvent("chat.reply_failed", map[string]any{
		"conversation_id": convID,
		"error":           cause.Error(),
	})
	s.notify()
}

// EvaluateWelcome runs the welcome flow if it is eligible: an employee
// actor, no selection, a successfully loaded and empty conversation list,
// and no earlier attempt in this session. It reports whether the flow ran.
// A failed attempt is retried once on a later evaluation.
func (s *chatSession) EvaluateWelcome(ctx context.Context) (bool, error) {
	if !s.opts.WelcomeEnabled || s.session.ActorType() != models.ActorEmployee {
		return false, nil
	}
	employee, ok := s.session.GetActiveEmployee()
	if !ok {
		return false, nil
	}
	companyID, err := s.CompanyID()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if !s.welcomeEligibleLocked() {
		s.mu.Unlock()
		return false, nil
	}
	s.welcome = WelcomeInFlight
	s.loading++
	reuse := s.welcomeConvID
	s.mu.Unlock()
	s.notify()
	defer s.endLoading()

	convID, err := s.runWelcome(ctx, companyID, employee, reuse)

	s.mu.Lock()
	if err != nil {
		s.welcomeFailures++
		if s.welcomeFailures > welcomeRetryBudget {
			s.welcome = WelcomeFailed
		} else {
			s.welcome = WelcomeNotAttempted
		}
		s.welcomeConvID = convID
		if convID != "" && s.selectedID == convID {
			s.selectedID = ""
			s.messages = []models.Message{}
			s.msgGen++
		}
		if i := s.indexLocked(convID); i >= 0 && len(s.conversations[i].Messages) == 0 {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
		}
		s.lastErr = err
		state := s.welcome
		s.mu.Unlock()

		s.logEvent("chat.welcome_failed", map[string]any{
			"company_id":      companyID,
			"employee_id":     employee.ID,
			"conversation_id": convID,
			"state":           state.String(),
			"error":           err.Error(),
		})
		s.notify()
		return true, fmt.Errorf("generating welcome: %w", err)
	}
	s.welcome = WelcomeDone
	s.welcomeConvID = ""
	s.lastErr = nil
	s.mu.Unlock()

	s.logEvent("chat.welcome_generated", map[string]any{
		"company_id":      companyID,
		"employee_id":     employee.ID,
		"conversation_id": convID,
	})
	s.notify()
	return true, nil
}

func (s *chatSession) welcomeEligibleLocked() bool {
	if s.welcome != WelcomeNotAttempted || s.selectedID != "" || !s.hydrated {
		return false
	}
	for _, c := range s.conversations {
		if c.ID != s.welcomeConvID {
			return false
		}
	}
	return true
}

// runWelcome returns the welcome conversation's ID even on failure so a
// retry can reuse it.
func (s *chatSession) runWelcome(ctx context.Context, companyID string, employee *models.Employee, reuse string) (string, error) {
	convID := reuse
	if convID == "" {
		conv, err := s.createConversation(ctx, companyID, WelcomeTitle)
		if err != nil {
			return "", err
		}
		convID = conv.ID
		s.adopt(convID, true)
	} else {
		s.mu.Lock()
		if s.indexLocked(convID) < 0 {
			s.conversations = append(s.conversations, models.Conversation{
				ID:        convID,
				CompanyID: companyID,
				Title:     WelcomeTitle,
				Messages:  []models.Message{},
				CreatedAt: s.opts.Now(),
			})
		}
		s.mu.Unlock()
		s.adopt(convID, false)
	}

	req := models.WelcomeRequest{
		CompanyID:    companyID,
		EmployeeName: employee.Name,
		Department:   employee.Department,
	}
	if !employee.Tags.IsEmpty() {
		tags := employee.Tags
		req.Tags = &tags
	}
	answer, err := s.gateway.GenerateWelcome(ctx, req)
	if err != nil {
		return convID, err
	}
	msg, err := s.gateway.SendMessage(ctx, convID, answer.Content, models.RoleAssistant, answer.Sources)
	if err != nil {
		return convID, err
	}
	if len(msg.Sources) == 0 {
		msg.Sources = answer.Sources
	}
	s.appendMessage(convID, *msg)

	s.mu.Lock()
	if i := s.indexLocked(convID); i >= 0 {
		s.conversations[i].Title = WelcomeTitle
	}
	s.mu.Unlock()
	return convID, nil
}

// DeriveTitle returns the first 50 characters of content, with an
// ellipsis when it was truncated.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// --- Snapshots ---

func (s *chatSession) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		c.Messages = append([]models.Message{}, c.Messages...)
		out[i] = c
	}
	return out
}

func (s *chatSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.messages...)
}

func (s *chatSession) SelectedConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

func (s *chatSession) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *chatSession) WelcomeState() WelcomeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.welcome
}

// LastError returns the most recent transient failure, cleared by the next
// successful operation.
func (s *chatSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// --- Helpers ---

func (s *chatSession) indexLocked(convID string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == convID {
			return i
		}
	}
	return -1
}

func (s *chatSession) endLoading() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
	s.notify()
}

func (s *chatSession) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

func (s *chatSession) logEvent(eventType string, data map[string]any) {
	if s.opts.Logger == nil {
		return
	}
	_ = s.opts.Logger.LogEvent(eventType, data)
}
