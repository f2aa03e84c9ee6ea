package core

import (
	"context"
	"io"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// SessionContext is the read-only view of the persisted session.
// This interface is defined locally in core to avoid importing storage.
type SessionContext interface {
	ActorType() models.ActorType
	GetActiveCompany() (*models.Company, bool)
	GetActiveEmployee() (*models.Employee, bool)
}

// SessionWriter is the persisted session as seen by login, registration
// and logout flows, the only writers of session state.
type SessionWriter interface {
	SessionContext
	SetActiveCompany(company models.Company) error
	SetActiveEmployee(employee models.Employee) error
	SetActorType(actor models.ActorType) error
	SetToken(token string) error
	Token() string
	Clear() error
}

// ChatGateway is the subset of the backend API the chat session needs.
type ChatGateway interface {
	ListConversations(ctx context.Context, companyID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, companyID, title string) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, content string, role models.Role, sources []models.Source) (*models.Message, error)
	Query(ctx context.Context, query, companyID string) (*models.RAGAnswer, error)
	GenerateWelcome(ctx context.Context, req models.WelcomeRequest) (*models.RAGAnswer, error)
}

// AuthGateway is the subset of the backend API used by the auth flows.
type AuthGateway interface {
	RegisterCompany(ctx context.Context, reg models.CompanyRegistration) (*models.Company, error)
	LoginCompany(ctx context.Context, creds models.Credentials) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	UpdateCompany(ctx context.Context, id string, upd models.CompanyUpdate) (*models.Company, error)
	RegisterEmployee(ctx context.Context, reg models.EmployeeRegistration) (*models.EmployeeSession, error)
	LoginEmployee(ctx context.Context, creds models.Credentials) (*models.EmployeeSession, error)
	UpdateEmployee(ctx context.Context, id string, upd models.EmployeeUpdate) (*models.Employee, error)
	ListEmployees(ctx context.Context, companyID string) ([]models.Employee, error)
}

// ResourceGateway is the subset of the backend API used by the resource
// library.
type ResourceGateway interface {
	ListResources(ctx context.Context, companyID string) ([]models.Resource, error)
	UploadFile(ctx context.Context, companyID, fileName string, content io.Reader, title string) (*models.Resource, error)
	AddURL(ctx context.Context, companyID, rawURL, title string) (*models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	DownloadResource(ctx context.Context, id string, w io.Writer) (int64, error)
}
