package models

import "time"

// ActorType identifies which kind of party drives the current session.
type ActorType string

const (
	ActorNone     ActorType = ""
	ActorCompany  ActorType = "company"
	ActorEmployee ActorType = "employee"
)

// Company is the canonical company record. The backend may send the
// identifier as "_id"; the API client normalizes it into ID.
type Company struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Industry    string    `json:"industry" yaml:"industry"`
	Size        string    `json:"size" yaml:"size"`
	ContactName string    `json:"contactName" yaml:"contact_name"`
	Email       string    `json:"email" yaml:"email"`
	CreatedAt   time.Time `json:"createdAt" yaml:"created_at"`
}

// CompanyRegistration is the payload for creating a company account.
type CompanyRegistration struct {
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Size        string `json:"size"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
}

// CompanyUpdate carries the editable company fields. Empty fields are omitted.
type CompanyUpdate struct {
	Name        string `json:"name,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// EmployeeTags is the tag-set an employee picks at registration.
type EmployeeTags struct {
	Roles     []string `json:"roles" yaml:"roles,omitempty"`
	Skills    []string `json:"skills" yaml:"skills,omitempty"`
	Interests []string `json:"interests" yaml:"interests,omitempty"`
}

// IsEmpty reports whether no tag of any kind is set.
func (t EmployeeTags) IsEmpty() bool {
	return len(t.Roles) == 0 && len(t.Skills) == 0 && len(t.Interests) == 0
}

// Employee is the canonical employee record.
type Employee struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Email      string       `json:"email" yaml:"email"`
	CompanyID  string       `json:"companyId" yaml:"company_id"`
	Department string       `json:"department" yaml:"department"`
	Tags       EmployeeTags `json:"tags" yaml:"tags"`
	CreatedAt  time.Time    `json:"createdAt" yaml:"created_at"`
}

// EmployeeRegistration is the payload for creating an employee account.
type EmployeeRegistration struct {
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	CompanyID  string       `json:"companyId"`
	Department string       `json:"department"`
	Tags       EmployeeTags `json:"tags"`
}

// EmployeeUpdate carries the editable employee profile fields.
type EmployeeUpdate struct {
	Name       string       `json:"name,omitempty"`
	Department string       `json:"department,omitempty"`
	Tags       EmployeeTags `json:"tags"`
}

// Credentials is the login payload shared by companies and employees.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmployeeSession is what the backend returns on employee register/login.
type EmployeeSession struct {
	Employee    Employee
	AccessToken string
}
