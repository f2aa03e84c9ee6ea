package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

const testCompanyID = "64b7f0c2a1e4d3b2c1a09f8e"

// --- Fakes ---

type fakeSession struct {
	actor    models.ActorType
	company  *models.Company
	employee *models.Employee
}

func (f *fakeSession) ActorType() models.ActorType { return f.actor }

func (f *fakeSession) GetActiveCompany() (*models.Company, bool) {
	return f.company, f.company != nil
}

func (f *fakeSession) GetActiveEmployee() (*models.Employee, bool) {
	return f.employee, f.employee != nil
}

func companySession() *fakeSession {
	return &fakeSession{
		actor:   models.ActorCompany,
		company: &models.Company{ID: testCompanyID, Name: "Acme"},
	}
}

func employeeSession() *fakeSession {
	return &fakeSession{
		actor: models.ActorEmployee,
		employee: &models.Employee{
			ID:         "emp-1",
			Name:       "Sam Lee",
			CompanyID:  testCompanyID,
			Department: "Engineering",
			Tags:       models.EmployeeTags{Roles: []string{"Developer"}, Skills: []string{"Go"}},
		},
	}
}

type sentMessage struct {
	ConversationID string
	Content        string
	Role           models.Role
	Sources        []models.Source
}

// fakeGateway is an in-memory ChatGateway. Optional fn fields override the
// default behavior of each call.
type fakeGateway struct {
	mu            sync.Mutex
	nextID        int
	clock         time.Time
	conversations map[string][]models.Conversation
	messages      map[string][]models.Message

	sent        []sentMessage
	queries     []string
	welcomeReqs []models.WelcomeRequest
	createCalls int

	listFn    func(companyID string) ([]models.Conversation, error)
	createFn  func(companyID, title string) (*models.Conversation, error)
	getFn     func(ctx context.Context, conversationID string) ([]models.Message, error)
	sendFn    func(conversationID, content string, role models.Role) error
	queryFn   func(query, companyID string) (*models.RAGAnswer, error)
	welcomeFn func(req models.WelcomeRequest) (*models.RAGAnswer, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		clock:         time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		conversations: make(map[string][]models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (f *fakeGateway) idLocked(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeGateway) tickLocked() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeGateway) ListConversations(_ context.Context, companyID string) ([]models.Conversation, error) {
	if f.listFn != nil {
		return f.listFn(companyID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversation{}, f.conversations[companyID]...), nil
}

func (f *fakeGateway) CreateConversation(_ context.Context, companyID, title string) (*models.Conversation, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(companyID, title)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := models.Conversation{
		ID:        f.idLocked("conv"),
		CompanyID: companyID,
		Title:     title,
		Messages:  []models.Message{},
		CreatedAt: f.tickLocked(),
	}
	f.conversations[companyID] = append(f.conversations[companyID], conv)
	return &conv, nil
}

func (f *fakeGateway) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if f.getFn != nil {
		return f.getFn(ctx, conversationID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message{}, f.messages[conversationID]...), nil
}

func (f *fakeGateway) SendMessage(_ context.Context, conversationID, content string, role models.Role, sources []models.Source) (*models.Message, error) {
	if f.sendFn != nil {
		if err := f.sendFn(conversationID, content, role); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ConversationID: conversationID, Content: content, Role: role, Sources: sources})
	msg := models.Message{
		ID:             f.idLocked("msg"),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
		CreatedAt:      f.tickLocked(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return &msg, nil
}

func (f *fakeGateway) Query(_ context.Context, query, companyID string) (*models.RAGAnswer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.queryFn != nil {
		return f.queryFn(query, companyID)
	}
	return &models.RAGAnswer{
		Content: "Answer to: " + query,
		Sources: []models.Source{{Type: models.ResourceFile, Title: "Handbook", ResourceID: "res-1", FileName: "handbook.pdf"}},
	}, nil
}

func (f *fakeGateway) GenerateWelcome(_ context.Context, req models.WelcomeRequest) (*models.RAGAnswer, error) {
	f.mu.Lock()
	f.welcomeReqs = append(f.welcomeReqs, req)
	f.mu.Unlock()
	if f.welcomeFn != nil {
		return f.welcomeFn(req)
	}
	return &models.RAGAnswer{Content: "Welcome, " + req.EmployeeName + "!"}, nil
}

func (f *fakeGateway) sentByRole(role models.Role) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeGateway) welcomeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.welcomeReqs)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingLogger) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingLogger) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

var errBackend = errors.New("API error: Internal Server Error")

// --- Company resolution ---

func TestChatSession_CompanyID(t *testing.T) {
	tests := []struct {
		name    string
		session *fakeSession
		testID  string
		want    string
		wantErr error
	}{
		{"company actor", companySession(), "", testCompanyID, nil},
		{"employee actor", employeeSession(), "", testCompanyID, nil},
		{"company actor without record falls back", &fakeSession{actor: models.ActorCompany}, "aaaaaaaaaaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaaaaaaaaaaa", nil},
		{"no actor uses test id", &fakeSession{}, "bbbbbbbbbbbbbbbbbbbbbbbb", "bbbbbbbbbbbbbbbbbbbbbbbb", nil},
		{"nothing resolves", &fakeSession{}, "", "", ErrNoCompanyContext},
		{"employee actor reads employee not company", &fakeSession{
			actor:    models.ActorEmployee,
			company:  &models.Company{ID: "company-record"},
			employee: &models.Employee{ID: "e", CompanyID: "employee-company"},
		}, "", "employee-company", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewChatSession(newFakeGateway(), tt.session, ChatSessionOptions{TestCompanyID: tt.testID})
			got, err := cs.CompanyID()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CompanyID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatSession_MutationsRequireCompany(t *testing.T) {
	gw := newFakeGateway()
	cs := NewChatSession(gw, &fakeSession{}, ChatSessionOptions{})

	if err := cs.SendMessage(context.Background(), "hello"); !errors.Is(err, ErrNoCompanyContext) {
		t.Errorf("SendMessage error = %v, want ErrNoCompanyContext", err)
	}
	if _, err := cs.CreateConversation(context.Background(), "x"); !errors.Is(err, ErrNoCompanyContext) {
		t.Errorf("CreateConversation error = %v, want ErrNoCompanyContext", err)
	}
	if err := cs.Sync(context.Background()); !errors.Is(err, ErrNoCompanyContext) {
		t.Errorf("Sync error = %v, want ErrNoCompanyContext", err)
	}
	if gw.createCalls != 0 || len(gw.sent) != 0 {
		t.Error("expected no backend calls without a company")
	}
}

func TestChatSession_SendMessageEmpty(t *testing.T) {
	cs := NewChatSession(newFakeGateway(), companySession(), ChatSessionOptions{})
	if err := cs.SendMessage(context.Background(), "   \n\t"); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

// --- Send ---

func TestChatSession_SendMessageAutoCreatesConversation(t *testing.T) {
	gw := newFakeGateway()
	var created []string
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{
		OnConversationCreated: func(id string) { created = append(created, id) },
	})

	if err := cs.SendMessage(context.Background(), "What is the vacation policy?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("expected one creation callback, got %v", created)
	}
	if cs.SelectedConversationID() != created[0] {
		t.Errorf("expected selection %q, got %q", created[0], cs.SelectedConversationID())
	}

	msgs := cs.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "What is the vacation policy?" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "Answer to: What is the vacation policy?" {
		t.Errorf("unexpected assistant message: %+v", msgs[1])
	}
	if len(msgs[1].Sources) != 1 || msgs[1].Sources[0].ResourceID != "res-1" {
		t.Errorf("expected mapped source on reply, got %+v", msgs[1].Sources)
	}
	if msgs[0].ID == "" || msgs[0].Local {
		t.Error("expected user message to carry the backend identifier")
	}

	convs := cs.Conversations()
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	if convs[0].Title != "What is the vacation policy?" {
		t.Errorf("unexpected title %q", convs[0].Title)
	}
	if len(convs[0].Messages) != 2 {
		t.Errorf("expected conversation to carry 2 messages, got %d", len(convs[0].Messages))
	}
	if cs.IsLoading() {
		t.Error("expected loading to be cleared")
	}
}

func TestChatSession_SendMessageUsesSelection(t *testing.T) {
	gw := newFakeGateway()
	created := 0
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{
		OnConversationCreated: func(string) { created++ },
	})
	ctx := context.Background()

	id, err := cs.CreateConversation(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.Select(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.SendMessage(ctx, "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.SendMessage(ctx, "second question that is different"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created != 0 {
		t.Errorf("expected no creation callback with a selection, got %d", created)
	}
	if gw.createCalls != 1 {
		t.Errorf("expected one conversation created, got %d", gw.createCalls)
	}
	if got := cs.Conversations()[0].Title; got != "first" {
		t.Errorf("title = %q, want first message only", got)
	}
	if len(cs.Messages()) != 4 {
		t.Errorf("expected 4 messages, got %d", len(cs.Messages()))
	}
}

func TestChatSession_ReplyFailureIsLocalOnly(t *testing.T) {
	gw := newFakeGateway()
	gw.queryFn = func(string, string) (*models.RAGAnswer, error) { return nil, errBackend }
	logger := &recordingLogger{}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{Logger: logger})

	if err := cs.SendMessage(context.Background(), "ping"); err != nil {
		t.Fatalf("expected failure to be recovered, got %v", err)
	}

	msgs := cs.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "ping" || msgs[0].Role != models.RoleUser {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Content != ReplyFailedText || !msgs[1].Local {
		t.Errorf("expected local apology, got %+v", msgs[1])
	}
	if !strings.HasPrefix(msgs[1].ID, "local-") {
		t.Errorf("expected local identifier, got %q", msgs[1].ID)
	}
	if n := len(gw.sentByRole(models.RoleAssistant)); n != 0 {
		t.Errorf("expected no assistant persistence, got %d", n)
	}
	if !logger.has("chat.reply_failed") {
		t.Error("expected chat.reply_failed event")
	}
	if cs.LastError() == nil {
		t.Error("expected LastError to report the failure")
	}
	if cs.IsLoading() {
		t.Error("expected loading to be cleared after failure")
	}

	// The next successful send clears the transient error.
	gw.queryFn = nil
	if err := cs.SendMessage(context.Background(), "again"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.LastError() != nil {
		t.Errorf("expected LastError cleared, got %v", cs.LastError())
	}
}

func TestChatSession_UserPersistFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.sendFn = func(_, _ string, role models.Role) error {
		if role == models.RoleUser {
			return errBackend
		}
		return nil
	}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})

	if err := cs.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := cs.Messages()
	if len(msgs) != 1 || !msgs[0].Local {
		t.Fatalf("expected only the local apology, got %+v", msgs)
	}
	if len(gw.queries) != 0 {
		t.Error("expected no assistant query after persist failure")
	}
}

func TestChatSession_AssistantPersistFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.sendFn = func(_, _ string, role models.Role) error {
		if role == models.RoleAssistant {
			return errBackend
		}
		return nil
	}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})

	if err := cs.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := cs.Messages()
	if len(msgs) != 2 || msgs[1].Content != ReplyFailedText {
		t.Fatalf("expected user message then apology, got %+v", msgs)
	}
}

func TestChatSession_AutoCreateFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.createFn = func(string, string) (*models.Conversation, error) { return nil, errBackend }
	called := false
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{
		OnConversationCreated: func(string) { called = true },
	})

	if err := cs.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no creation callback on failure")
	}
	msgs := cs.Messages()
	if len(msgs) != 1 || msgs[0].Content != ReplyFailedText {
		t.Fatalf("expected apology, got %+v", msgs)
	}
	if len(gw.sent) != 0 {
		t.Error("expected nothing persisted")
	}
}

// --- Loading ---

func TestChatSession_LoadConversationsHydrates(t *testing.T) {
	gw := newFakeGateway()
	gw.conversations[testCompanyID] = []models.Conversation{
		{ID: "a", CompanyID: testCompanyID, Title: "A"},
		{ID: "b", CompanyID: testCompanyID, Title: "B"},
	}
	gw.messages["a"] = []models.Message{{ID: "m1", ConversationID: "a", Role: models.RoleUser, Content: "hi"}}

	logger := &recordingLogger{}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{Logger: logger})
	if err := cs.LoadConversations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	convs := cs.Conversations()
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if len(convs[0].Messages) != 1 {
		t.Errorf("expected conversation a hydrated with 1 message, got %d", len(convs[0].Messages))
	}
	if convs[1].Messages == nil {
		t.Error("expected empty, non-nil message list for b")
	}
	if !logger.has("chat.conversations_loaded") {
		t.Error("expected chat.conversations_loaded event")
	}
}

func TestChatSession_LoadFailureResetsToEmpty(t *testing.T) {
	gw := newFakeGateway()
	gw.conversations[testCompanyID] = []models.Conversation{{ID: "a", CompanyID: testCompanyID}}
	logger := &recordingLogger{}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{Logger: logger})
	ctx := context.Background()

	if err := cs.LoadConversations(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs.Conversations()) != 1 {
		t.Fatal("expected initial load to succeed")
	}

	// Listing works but hydrating one conversation fails.
	gw.getFn = func(context.Context, string) ([]models.Message, error) { return nil, errBackend }
	if err := cs.LoadConversations(ctx); err != nil {
		t.Fatalf("expected failure to be recovered, got %v", err)
	}
	if n := len(cs.Conversations()); n != 0 {
		t.Errorf("expected empty list after failed refresh, got %d", n)
	}
	if !logger.has("chat.conversations_load_failed") {
		t.Error("expected chat.conversations_load_failed event")
	}
}

func TestChatSession_SyncReloadsOnlyOnCompanyChange(t *testing.T) {
	gw := newFakeGateway()
	listCalls := 0
	gw.listFn = func(string) ([]models.Conversation, error) {
		listCalls++
		return []models.Conversation{}, nil
	}
	sess := companySession()
	cs := NewChatSession(gw, sess, ChatSessionOptions{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cs.Sync(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if listCalls != 1 {
		t.Errorf("expected 1 list call for a stable company, got %d", listCalls)
	}

	sess.company = &models.Company{ID: "cccccccccccccccccccccccc"}
	if err := cs.Sync(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listCalls != 2 {
		t.Errorf("expected reload after company change, got %d calls", listCalls)
	}
}

func TestChatSession_SelectReplacesMessages(t *testing.T) {
	gw := newFakeGateway()
	gw.messages["a"] = []models.Message{{ID: "a1", Content: "from a"}}
	gw.messages["b"] = []models.Message{{ID: "b1", Content: "from b"}, {ID: "b2", Content: "more b"}}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})
	ctx := context.Background()

	_ = cs.Select(ctx, "a")
	if msgs := cs.Messages(); len(msgs) != 1 || msgs[0].ID != "a1" {
		t.Fatalf("unexpected messages for a: %+v", msgs)
	}
	_ = cs.Select(ctx, "b")
	if msgs := cs.Messages(); len(msgs) != 2 || msgs[0].ID != "b1" {
		t.Fatalf("unexpected messages for b: %+v", msgs)
	}
	_ = cs.Select(ctx, "")
	if len(cs.Messages()) != 0 || cs.SelectedConversationID() != "" {
		t.Error("expected cleared selection to empty messages")
	}
}

func TestChatSession_SelectFailureEmptiesMessages(t *testing.T) {
	gw := newFakeGateway()
	gw.getFn = func(context.Context, string) ([]models.Message, error) { return nil, errBackend }
	logger := &recordingLogger{}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{Logger: logger})

	if err := cs.Select(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs.Messages()) != 0 {
		t.Error("expected empty messages")
	}
	if !logger.has("chat.messages_load_failed") {
		t.Error("expected chat.messages_load_failed event")
	}
}

func TestChatSession_StaleSelectDiscarded(t *testing.T) {
	gw := newFakeGateway()
	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	gw.getFn = func(_ context.Context, id string) ([]models.Message, error) {
		if id == "a" {
			close(startedA)
			<-releaseA
			return []models.Message{{ID: "a1", Content: "stale"}}, nil
		}
		return []models.Message{{ID: "b1", Content: "fresh"}}, nil
	}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_ = cs.Select(ctx, "a")
		close(done)
	}()
	<-startedA

	if err := cs.Select(ctx, "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(releaseA)
	<-done

	msgs := cs.Messages()
	if len(msgs) != 1 || msgs[0].ID != "b1" {
		t.Fatalf("expected b's messages, got %+v", msgs)
	}
	if cs.SelectedConversationID() != "b" {
		t.Errorf("expected selection b, got %q", cs.SelectedConversationID())
	}
}

func TestChatSession_StaleFetchKeepsSentMessages(t *testing.T) {
	gw := newFakeGateway()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw.getFn = func(_ context.Context, id string) ([]models.Message, error) {
		blocked := false
		once.Do(func() { blocked = true })
		if blocked {
			close(started)
			<-release
			return []models.Message{}, nil
		}
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return append([]models.Message{}, gw.messages[id]...), nil
	}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_ = cs.Select(ctx, "a")
		close(done)
	}()
	<-started

	if err := cs.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	<-done

	msgs := cs.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected the confirmed user and assistant messages, got %+v", msgs)
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" || msgs[1].Role != models.RoleAssistant {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	// A later fetch replaces the list with the backend's copy.
	if err := cs.Select(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs.Messages()) != 2 {
		t.Errorf("expected 2 messages after reselect, got %+v", cs.Messages())
	}
}

func TestChatSession_StaleFetchFailureKeepsSentMessages(t *testing.T) {
	gw := newFakeGateway()
	started := make(chan struct{})
	release := make(chan struct{})
	gw.getFn = func(context.Context, string) ([]models.Message, error) {
		close(started)
		<-release
		return nil, errBackend
	}
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_ = cs.Select(ctx, "a")
		close(done)
	}()
	<-started
	_ = cs.SendMessage(ctx, "hello")
	close(release)
	<-done

	if n := len(cs.Messages()); n != 2 {
		t.Errorf("expected sent messages to survive a failed stale fetch, got %d", n)
	}
}

func TestChatSession_SyncWithoutCompanyClearsTranscript(t *testing.T) {
	gw := newFakeGateway()
	sess := companySession()
	cs := NewChatSession(gw, sess, ChatSessionOptions{})
	ctx := context.Background()

	if err := cs.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.SelectedConversationID() == "" || len(cs.Messages()) == 0 {
		t.Fatal("expected a selected conversation with messages")
	}

	sess.actor = ""
	sess.company = nil
	if err := cs.Sync(ctx); !errors.Is(err, ErrNoCompanyContext) {
		t.Fatalf("error = %v, want ErrNoCompanyContext", err)
	}
	if cs.SelectedConversationID() != "" {
		t.Errorf("selection = %q, want cleared", cs.SelectedConversationID())
	}
	if len(cs.Messages()) != 0 || len(cs.Conversations()) != 0 {
		t.Errorf("expected no stale transcript, got %d messages and %d conversations", len(cs.Messages()), len(cs.Conversations()))
	}
}

// --- Welcome ---

func TestChatSession_WelcomeFlow(t *testing.T) {
	gw := newFakeGateway()
	gw.welcomeFn = func(req models.WelcomeRequest) (*models.RAGAnswer, error) {
		return &models.RAGAnswer{
			Content: "Welcome, " + req.EmployeeName + "!",
			Sources: []models.Source{{Type: models.ResourceURL, Title: "Wiki", URL: "https://wiki.test"}},
		}, nil
	}
	var created []string
	logger := &recordingLogger{}
	cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{
		WelcomeEnabled:        true,
		Logger:                logger,
		OnConversationCreated: func(id string) { created = append(created, id) },
	})

	if err := cs.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cs.WelcomeState() != WelcomeDone {
		t.Errorf("welcome state = %s, want done", cs.WelcomeState())
	}
	if len(created) != 1 {
		t.Fatalf("expected one creation callback, got %v", created)
	}
	if len(gw.welcomeReqs) != 1 {
		t.Fatalf("expected one welcome call, got %d", len(gw.welcomeReqs))
	}
	req := gw.welcomeReqs[0]
	if req.CompanyID != testCompanyID || req.EmployeeName != "Sam Lee" || req.Department != "Engineering" {
		t.Errorf("unexpected welcome request: %+v", req)
	}
	if req.Tags == nil || len(req.Tags.Roles) != 1 {
		t.Errorf("expected tags in welcome request, got %+v", req.Tags)
	}

	convs := cs.Conversations()
	if len(convs) != 1 || convs[0].Title != WelcomeTitle {
		t.Fatalf("expected welcome conversation, got %+v", convs)
	}
	msgs := cs.Messages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleAssistant || msgs[0].Content != "Welcome, Sam Lee!" {
		t.Fatalf("unexpected welcome messages: %+v", msgs)
	}
	if len(msgs[0].Sources) != 1 {
		t.Errorf("expected welcome sources, got %+v", msgs[0].Sources)
	}
	if persisted := gw.sentByRole(models.RoleAssistant); len(persisted) != 1 {
		t.Errorf("expected welcome persisted once, got %d", len(persisted))
	}
	if !logger.has("chat.welcome_generated") {
		t.Error("expected chat.welcome_generated event")
	}

	// Further evaluations are no-ops.
	for i := 0; i < 3; i++ {
		_ = cs.Sync(context.Background())
		_, _ = cs.EvaluateWelcome(context.Background())
	}
	if gw.welcomeCount() != 1 {
		t.Errorf("expected welcome at most once, got %d", gw.welcomeCount())
	}
}

func TestChatSession_WelcomeNotEligible(t *testing.T) {
	t.Run("company actor", func(t *testing.T) {
		gw := newFakeGateway()
		cs := NewChatSession(gw, companySession(), ChatSessionOptions{WelcomeEnabled: true})
		_ = cs.Sync(context.Background())
		if gw.welcomeCount() != 0 {
			t.Error("expected no welcome for company actor")
		}
	})

	t.Run("existing conversations", func(t *testing.T) {
		gw := newFakeGateway()
		gw.conversations[testCompanyID] = []models.Conversation{{ID: "a", CompanyID: testCompanyID}}
		cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: true})
		_ = cs.Sync(context.Background())
		if gw.welcomeCount() != 0 {
			t.Error("expected no welcome with existing conversations")
		}
	})

	t.Run("conversations not loaded", func(t *testing.T) {
		gw := newFakeGateway()
		gw.listFn = func(string) ([]models.Conversation, error) { return nil, errBackend }
		cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: true})
		_ = cs.Sync(context.Background())
		if gw.welcomeCount() != 0 {
			t.Error("expected no welcome when the list failed to load")
		}
	})

	t.Run("selection present", func(t *testing.T) {
		gw := newFakeGateway()
		cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: true})
		_ = cs.LoadConversations(context.Background())
		_ = cs.Select(context.Background(), "somewhere")
		ran, err := cs.EvaluateWelcome(context.Background())
		if ran || err != nil || gw.welcomeCount() != 0 {
			t.Errorf("expected no welcome with a selection, ran=%v err=%v", ran, err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		gw := newFakeGateway()
		cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: false})
		_ = cs.Sync(context.Background())
		if gw.welcomeCount() != 0 {
			t.Error("expected no welcome when disabled")
		}
	})
}

func TestChatSession_WelcomeRetriesOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.welcomeFn = func(models.WelcomeRequest) (*models.RAGAnswer, error) { return nil, errBackend }
	created := 0
	logger := &recordingLogger{}
	cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{
		WelcomeEnabled:        true,
		Logger:                logger,
		OnConversationCreated: func(string) { created++ },
	})
	ctx := context.Background()

	if err := cs.Sync(ctx); err == nil {
		t.Fatal("expected first welcome failure to be reported")
	}
	if cs.WelcomeState() != WelcomeNotAttempted {
		t.Errorf("state after first failure = %s, want not_attempted", cs.WelcomeState())
	}
	if cs.SelectedConversationID() != "" {
		t.Error("expected failed welcome conversation to be deselected")
	}
	if !logger.has("chat.welcome_failed") {
		t.Error("expected chat.welcome_failed event")
	}

	ran, err := cs.EvaluateWelcome(ctx)
	if !ran || err == nil {
		t.Fatalf("expected retry to run and fail, ran=%v err=%v", ran, err)
	}
	if cs.WelcomeState() != WelcomeFailed {
		t.Errorf("state after second failure = %s, want failed", cs.WelcomeState())
	}

	ran, _ = cs.EvaluateWelcome(ctx)
	if ran {
		t.Error("expected no third attempt")
	}
	if gw.welcomeCount() != 2 {
		t.Errorf("expected 2 welcome calls, got %d", gw.welcomeCount())
	}
	if gw.createCalls != 1 || created != 1 {
		t.Errorf("expected the retry to reuse the conversation, creates=%d callbacks=%d", gw.createCalls, created)
	}
}

func TestChatSession_ClearingSelectionRetriesWelcome(t *testing.T) {
	gw := newFakeGateway()
	attempts := 0
	gw.welcomeFn = func(req models.WelcomeRequest) (*models.RAGAnswer, error) {
		attempts++
		if attempts == 1 {
			return nil, errBackend
		}
		return &models.RAGAnswer{Content: "Hello " + req.EmployeeName}, nil
	}
	cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: true})
	ctx := context.Background()

	if err := cs.Sync(ctx); err == nil {
		t.Fatal("expected first welcome failure")
	}
	for i := 0; i < 3; i++ {
		if err := cs.LoadConversations(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if gw.welcomeCount() != 1 {
		t.Fatalf("reloading alone should not retry, got %d calls", gw.welcomeCount())
	}

	if err := cs.Select(ctx, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.welcomeCount() != 2 {
		t.Errorf("expected the retry on selection change, got %d calls", gw.welcomeCount())
	}
	if cs.WelcomeState() != WelcomeDone {
		t.Errorf("state = %s, want done", cs.WelcomeState())
	}
	if msgs := cs.Messages(); len(msgs) != 1 || msgs[0].Content != "Hello Sam Lee" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
	if len(cs.Conversations()) != 1 {
		t.Errorf("expected the welcome conversation to be reused, got %+v", cs.Conversations())
	}
}

func TestChatSession_WelcomeRetrySucceeds(t *testing.T) {
	gw := newFakeGateway()
	attempts := 0
	gw.welcomeFn = func(req models.WelcomeRequest) (*models.RAGAnswer, error) {
		attempts++
		if attempts == 1 {
			return nil, errBackend
		}
		return &models.RAGAnswer{Content: "Hello " + req.EmployeeName}, nil
	}
	cs := NewChatSession(gw, employeeSession(), ChatSessionOptions{WelcomeEnabled: true})
	ctx := context.Background()

	_ = cs.Sync(ctx)
	if _, err := cs.EvaluateWelcome(ctx); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if cs.WelcomeState() != WelcomeDone {
		t.Errorf("state = %s, want done", cs.WelcomeState())
	}
	convs := cs.Conversations()
	if len(convs) != 1 || len(convs[0].Messages) != 1 {
		t.Fatalf("expected one welcome conversation with one message, got %+v", convs)
	}
	if cs.SelectedConversationID() != convs[0].ID {
		t.Error("expected welcome conversation to be selected")
	}
}

func TestChatSession_OnChangeCalled(t *testing.T) {
	gw := newFakeGateway()
	var mu sync.Mutex
	changes := 0
	cs := NewChatSession(gw, companySession(), ChatSessionOptions{
		OnChange: func() {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	})
	_ = cs.SendMessage(context.Background(), "hello")

	mu.Lock()
	defer mu.Unlock()
	if changes == 0 {
		t.Error("expected change notifications")
	}
}

// --- Title derivation ---

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 80)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", strings.Repeat("b", 30), strings.Repeat("b", 30)},
		{"exactly fifty", strings.Repeat("c", 50), strings.Repeat("c", 50)},
		{"truncated", long, strings.Repeat("a", 50) + "..."},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.content); got != tt.want {
				t.Errorf("DeriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWelcomeState_String(t *testing.T) {
	if WelcomeInFlight.String() != "in_flight" || WelcomeState(9).String() != "unknown" {
		t.Error("unexpected welcome state names")
	}
}
