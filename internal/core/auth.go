package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

var (
	// ErrInvalidCompanyID is returned when an employee registers with a
	// company identifier that is not 24 hex characters.
	ErrInvalidCompanyID = errors.New("Invalid Company ID format. Please enter a valid 24-character company ID (provided by your HR department).")

	// ErrNotAuthenticated is returned by operations on the active profile
	// when no matching actor is logged in.
	ErrNotAuthenticated = errors.New("not logged in")
)

// Home surfaces an actor lands on after authenticating.
const (
	HomeDashboard = "dashboard"
	HomeChat      = "chat"
	HomeLogin     = "login"
)

// Identity describes who the persisted session belongs to.
type Identity struct {
	Actor         models.ActorType
	Company       *models.Company
	Employee      *models.Employee
	Authenticated bool
	Home          string
}

// AuthService registers, logs in and logs out companies and employees.
// It is the only writer of the persisted session.
type AuthService interface {
	RegisterCompany(ctx context.Context, reg models.CompanyRegistration) (*models.Company, error)
	LoginCompany(ctx context.Context, creds models.Credentials) (*models.Company, error)
	RefreshCompany(ctx context.Context) (*models.Company, error)
	UpdateCompany(ctx context.Context, upd models.CompanyUpdate) (*models.Company, error)
	RegisterEmployee(ctx context.Context, reg models.EmployeeRegistration) (*models.Employee, error)
	LoginEmployee(ctx context.Context, creds models.Credentials) (*models.Employee, error)
	UpdateEmployee(ctx context.Context, upd models.EmployeeUpdate) (*models.Employee, error)
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	Logout() error
	WhoAmI() Identity
}

type authService struct {
	gateway AuthGateway
	session SessionWriter
	logger  EventLogger
}

// NewAuthService creates an AuthService writing to the given session.
func NewAuthService(gateway AuthGateway, session SessionWriter, logger EventLogger) AuthService {
	return &authService{gateway: gateway, session: session, logger: logger}
}

func (a *authService) RegisterCompany(ctx context.Context, reg models.CompanyRegistration) (*models.Company, error) {
	company, err := a.gateway.RegisterCompany(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("registering company: %w", err)
	}
	if err := a.persistCompany(*company); err != nil {
		return nil, err
	}
	a.logEvent("auth.login", map[string]any{"actor": string(models.ActorCompany), "id": company.ID, "registered": true})
	return company, nil
}

func (a *authService) LoginCompany(ctx context.Context, creds models.Credentials) (*models.Company, error) {
	company, err := a.gateway.LoginCompany(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("logging in company: %w", err)
	}
	if err := a.persistCompany(*company); err != nil {
		return nil, err
	}
	a.logEvent("auth.login", map[string]any{"actor": string(models.ActorCompany), "id": company.ID})
	return company, nil
}

// RefreshCompany re-fetches the active company and replaces the
// persisted record.
func (a *authService) RefreshCompany(ctx context.Context) (*models.Company, error) {
	current, ok := a.activeCompany()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	company, err := a.gateway.GetCompany(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching company %s: %w", current.ID, err)
	}
	if err := a.session.SetActiveCompany(*company); err != nil {
		return nil, fmt.Errorf("saving company: %w", err)
	}
	return company, nil
}

func (a *authService) UpdateCompany(ctx context.Context, upd models.CompanyUpdate) (*models.Company, error) {
	current, ok := a.activeCompany()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	company, err := a.gateway.UpdateCompany(ctx, current.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("updating company %s: %w", current.ID, err)
	}
	if err := a.session.SetActiveCompany(*company); err != nil {
		return nil, fmt.Errorf("saving company: %w", err)
	}
	return company, nil
}

func (a *authService) RegisterEmployee(ctx context.Context, reg models.EmployeeRegistration) (*models.Employee, error) {
	reg.CompanyID = strings.ToLower(strings.TrimSpace(reg.CompanyID))
	if !IsObjectID(reg.CompanyID) {
		return nil, ErrInvalidCompanyID
	}
	sess, err := a.gateway.RegisterEmployee(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("registering employee: %w", err)
	}
	if err := a.persistEmployee(sess); err != nil {
		return nil, err
	}
	a.logEvent("auth.login", map[string]any{"actor": string(models.ActorEmployee), "id": sess.Employee.ID, "registered": true})
	return &sess.Employee, nil
}

func (a *authService) LoginEmployee(ctx context.Context, creds models.Credentials) (*models.Employee, error) {
	sess, err := a.gateway.LoginEmployee(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("logging in employee: %w", err)
	}
	if err := a.persistEmployee(sess); err != nil {
		return nil, err
	}
	a.logEvent("auth.login", map[string]any{"actor": string(models.ActorEmployee), "id": sess.Employee.ID})
	return &sess.Employee, nil
}

func (a *authService) UpdateEmployee(ctx context.Context, upd models.EmployeeUpdate) (*models.Employee, error) {
	if a.session.ActorType() != models.ActorEmployee {
		return nil, ErrNotAuthenticated
	}
	current, ok := a.session.GetActiveEmployee()
	if !ok || current.ID == "" {
		return nil, ErrNotAuthenticated
	}
	emp, err := a.gateway.UpdateEmployee(ctx, current.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("updating employee %s: %w", current.ID, err)
	}
	if err := a.session.SetActiveEmployee(*emp); err != nil {
		return nil, fmt.Errorf("saving employee: %w", err)
	}
	return emp, nil
}

// ListEmployees lists the employees of the logged-in company.
func (a *authService) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	current, ok := a.activeCompany()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	emps, err := a.gateway.ListEmployees(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	return emps, nil
}

// Logout removes every persisted session key, legacy keys included.
func (a *authService) Logout() error {
	actor := a.session.ActorType()
	if err := a.session.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	a.logEvent("auth.logout", map[string]any{"actor": string(actor)})
	return nil
}

// WhoAmI reports the persisted identity. A session counts as
// authenticated when it holds an employee token or a company record.
func (a *authService) WhoAmI() Identity {
	id := Identity{Actor: a.session.ActorType(), Home: HomeLogin}
	if c, ok := a.session.GetActiveCompany(); ok {
		id.Company = c
	}
	if e, ok := a.session.GetActiveEmployee(); ok {
		id.Employee = e
	}
	id.Authenticated = a.session.Token() != "" || id.Company != nil

	switch id.Actor {
	case models.ActorEmployee:
		if id.Authenticated {
			id.Home = HomeChat
		}
	case models.ActorCompany:
		if id.Company != nil {
			id.Home = HomeDashboard
		}
	}
	return id
}

func (a *authService) activeCompany() (*models.Company, bool) {
	if a.session.ActorType() != models.ActorCompany {
		return nil, false
	}
	c, ok := a.session.GetActiveCompany()
	if !ok || c.ID == "" {
		return nil, false
	}
	return c, true
}

func (a *authService) persistCompany(company models.Company) error {
	if err := a.session.SetActiveCompany(company); err != nil {
		return fmt.Errorf("saving company: %w", err)
	}
	if err := a.session.SetActorType(models.ActorCompany); err != nil {
		return fmt.Errorf("saving actor type: %w", err)
	}
	return nil
}

func (a *authService) persistEmployee(sess *models.EmployeeSession) error {
	if err := a.session.SetToken(sess.AccessToken); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if err := a.session.SetActorType(models.ActorEmployee); err != nil {
		return fmt.Errorf("saving actor type: %w", err)
	}
	if err := a.session.SetActiveEmployee(sess.Employee); err != nil {
		return fmt.Errorf("saving employee: %w", err)
	}
	return nil
}

func (a *authService) logEvent(eventType string, data map[string]any) {
	if a.logger == nil {
		return
	}
	_ = a.logger.LogEvent(eventType, data)
}
