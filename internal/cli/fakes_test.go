package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/valter-silva-au/onboard-ai/internal/core"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

const testCompanyID = "65f1a2b3c4d5e6f7a8b9c0d1"

// fakeAuth implements core.AuthService.
type fakeAuth struct {
	identity core.Identity
	err      error

	companyReg  models.CompanyRegistration
	companyUpd  models.CompanyUpdate
	employeeReg models.EmployeeRegistration
	employeeUpd models.EmployeeUpdate
	creds       models.Credentials
	employees   []models.Employee
	loggedOut   bool
}

func (f *fakeAuth) RegisterCompany(_ context.Context, reg models.CompanyRegistration) (*models.Company, error) {
	f.companyReg = reg
	if f.err != nil {
		return nil, f.err
	}
	return &models.Company{ID: testCompanyID, Name: reg.Name, Email: reg.Email}, nil
}

func (f *fakeAuth) LoginCompany(_ context.Context, creds models.Credentials) (*models.Company, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	return &models.Company{ID: testCompanyID, Name: "Acme", Email: creds.Email}, nil
}

func (f *fakeAuth) RefreshCompany(context.Context) (*models.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Company{ID: testCompanyID, Name: "Acme (fresh)"}, nil
}

func (f *fakeAuth) UpdateCompany(_ context.Context, upd models.CompanyUpdate) (*models.Company, error) {
	f.companyUpd = upd
	if f.err != nil {
		return nil, f.err
	}
	return &models.Company{ID: testCompanyID, Name: "Acme", Size: upd.Size}, nil
}

func (f *fakeAuth) RegisterEmployee(_ context.Context, reg models.EmployeeRegistration) (*models.Employee, error) {
	f.employeeReg = reg
	if f.err != nil {
		return nil, f.err
	}
	return &models.Employee{ID: "e1", Name: reg.Name, Email: reg.Email, CompanyID: reg.CompanyID}, nil
}

func (f *fakeAuth) LoginEmployee(_ context.Context, creds models.Credentials) (*models.Employee, error) {
	f.creds = creds
	if f.err != nil {
		return nil, f.err
	}
	return &models.Employee{ID: "e1", Email: creds.Email}, nil
}

func (f *fakeAuth) UpdateEmployee(_ context.Context, upd models.EmployeeUpdate) (*models.Employee, error) {
	f.employeeUpd = upd
	if f.err != nil {
		return nil, f.err
	}
	return &models.Employee{ID: "e1", Name: upd.Name, Department: upd.Department, Tags: upd.Tags}, nil
}

func (f *fakeAuth) ListEmployees(context.Context) ([]models.Employee, error) {
	return f.employees, f.err
}

func (f *fakeAuth) Logout() error {
	f.loggedOut = true
	return f.err
}

func (f *fakeAuth) WhoAmI() core.Identity { return f.identity }

// fakeLibrary implements core.ResourceLibrary.
type fakeLibrary struct {
	resources []models.Resource
	err       error
	failPath  string

	uploads  []string
	titles   []string
	deleted  []string
	dirs     []string
	urlAdded string
}

func (f *fakeLibrary) List(context.Context) ([]models.Resource, error) {
	return f.resources, f.err
}

func (f *fakeLibrary) UploadFile(_ context.Context, path, title string) (*models.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	if path == f.failPath {
		return nil, errors.New("upload rejected")
	}
	f.uploads = append(f.uploads, path)
	f.titles = append(f.titles, title)
	if title == "" {
		title = path
	}
	return &models.Resource{ID: "r" + path, Type: models.ResourceFile, Title: title}, nil
}

func (f *fakeLibrary) AddURL(_ context.Context, rawURL, title string) (*models.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.urlAdded = rawURL
	if title == "" {
		title = "wiki.acme.test"
	}
	return &models.Resource{ID: "u1", Type: models.ResourceURL, Title: title, URL: rawURL}, nil
}

func (f *fakeLibrary) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeLibrary) Download(_ context.Context, id, dir string) (string, error) {
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return "", f.err
	}
	return dir + "/" + id + ".pdf", nil
}

func (f *fakeLibrary) UploadEach(ctx context.Context, paths <-chan string, report func(core.UploadResult)) error {
	if f.err != nil {
		return f.err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			res, err := f.UploadFile(ctx, p, "")
			report(core.UploadResult{Path: p, Resource: res, Err: err})
		}
	}
}

// fakeChat implements core.ChatSession over in-memory state. SendMessage
// appends a user message and a canned answer, or the local apology when
// sendErr is set.
type fakeChat struct {
	convs    []models.Conversation
	messages []models.Message
	selected string
	lastErr  error
	loading  bool
	syncErr  error
	sendErr  error
	opts     core.ChatSessionOptions

	syncs   int
	loads   int
	evals   int
	selects []string
	sent    []string
}

func (f *fakeChat) CompanyID() (string, error) { return testCompanyID, nil }

func (f *fakeChat) Sync(context.Context) error {
	f.syncs++
	return f.syncErr
}

func (f *fakeChat) LoadConversations(context.Context) error {
	f.loads++
	return nil
}

func (f *fakeChat) Select(_ context.Context, id string) error {
	f.selects = append(f.selects, id)
	f.selected = id
	f.messages = nil
	for _, c := range f.convs {
		if c.ID == id {
			f.messages = append([]models.Message{}, c.Messages...)
		}
	}
	return nil
}

func (f *fakeChat) CreateConversation(_ context.Context, title string) (string, error) {
	id := "c-new"
	f.convs = append(f.convs, models.Conversation{ID: id, Title: title})
	return id, nil
}

func (f *fakeChat) SendMessage(_ context.Context, content string) error {
	f.sent = append(f.sent, content)
	if f.selected == "" {
		f.selected = "c-new"
		if f.opts.OnConversationCreated != nil {
			f.opts.OnConversationCreated(f.selected)
		}
	}
	f.messages = append(f.messages, models.Message{Role: models.RoleUser, Content: content})
	if f.sendErr != nil {
		f.lastErr = f.sendErr
		f.messages = append(f.messages, models.Message{Role: models.RoleAssistant, Content: core.ReplyFailedText, Local: true})
		return nil
	}
	f.messages = append(f.messages, models.Message{
		Role:    models.RoleAssistant,
		Content: "Laptops are handed out on day one.",
		Sources: []models.Source{{Type: models.ResourceFile, Title: "Handbook", FileName: "handbook.pdf"}},
	})
	return nil
}

func (f *fakeChat) EvaluateWelcome(context.Context) (bool, error) {
	f.evals++
	return false, nil
}

func (f *fakeChat) Conversations() []models.Conversation { return f.convs }
func (f *fakeChat) Messages() []models.Message           { return f.messages }
func (f *fakeChat) SelectedConversationID() string       { return f.selected }
func (f *fakeChat) IsLoading() bool                      { return f.loading }
func (f *fakeChat) WelcomeState() core.WelcomeState      { return core.WelcomeNotAttempted }
func (f *fakeChat) LastError() error                     { return f.lastErr }

// useChat installs a NewChatSession factory returning chat, restoring the
// previous factory when the test ends.
func useChat(t *testing.T, chat *fakeChat) {
	orig := NewChatSession
	NewChatSession = func(opts core.ChatSessionOptions) core.ChatSession {
		chat.opts = opts
		return chat
	}
	t.Cleanup(func() { NewChatSession = orig })
}
