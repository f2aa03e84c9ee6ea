package stubserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type companyRequest struct {
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Size        string `json:"size"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type employeeRequest struct {
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	CompanyID  string       `json:"companyId"`
	Department string       `json:"department"`
	Tags       employeeTags `json:"tags"`
}

// RegisterCompany creates a company account.
// POST /api/companies
func (s *Server) RegisterCompany(c echo.Context) error {
	var req companyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return errorJSON(c, http.StatusBadRequest, "name and email are required")
	}

	company, err := s.store.addCompany(companyRecord{
		Name:        req.Name,
		Industry:    req.Industry,
		Size:        req.Size,
		ContactName: req.ContactName,
		Email:       req.Email,
		password:    req.Password,
	})
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusCreated, company)
}

// LoginCompany authenticates a company by email and password.
// POST /api/companies/login
func (s *Server) LoginCompany(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	company, err := s.store.loginCompany(req.Email, req.Password)
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusOK, company)
}

// GET /api/companies/:id
func (s *Server) GetCompany(c echo.Context) error {
	company, err := s.store.company(c.Param("id"))
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusOK, company)
}

// UpdateCompany applies the non-empty fields of the body.
// PATCH /api/companies/:id
func (s *Server) UpdateCompany(c echo.Context) error {
	var req companyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	company, err := s.store.updateCompany(c.Param("id"), func(r *companyRecord) {
		if req.Name != "" {
			r.Name = req.Name
		}
		if req.Industry != "" {
			r.Industry = req.Industry
		}
		if req.Size != "" {
			r.Size = req.Size
		}
		if req.ContactName != "" {
			r.ContactName = req.ContactName
		}
		if req.Email != "" {
			r.Email = req.Email
		}
	})
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusOK, company)
}

// RegisterEmployee creates an employee under an existing company and
// returns it with a fresh access token.
// POST /api/employees
func (s *Server) RegisterEmployee(c echo.Context) error {
	var req employeeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "email and password are required")
	}

	emp, err := s.store.addEmployee(employeeRecord{
		Name:       req.Name,
		Email:      req.Email,
		CompanyID:  req.CompanyID,
		Department: req.Department,
		Tags:       req.Tags,
		password:   req.Password,
	})
	if err != nil {
		return storeError(c, err, "company")
	}
	emp.AccessToken = newToken()
	return c.JSON(http.StatusCreated, emp)
}

// POST /api/employees/login
func (s *Server) LoginEmployee(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	emp, err := s.store.loginEmployee(req.Email, req.Password)
	if err != nil {
		return storeError(c, err, "employee")
	}
	emp.AccessToken = newToken()
	return c.JSON(http.StatusOK, emp)
}

// UpdateEmployee replaces the profile fields. Tags are always replaced.
// PATCH /api/employees/:id
func (s *Server) UpdateEmployee(c echo.Context) error {
	var req employeeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	emp, err := s.store.updateEmployee(c.Param("id"), func(r *employeeRecord) {
		if req.Name != "" {
			r.Name = req.Name
		}
		if req.Department != "" {
			r.Department = req.Department
		}
		r.Tags = req.Tags
	})
	if err != nil {
		return storeError(c, err, "employee")
	}
	return c.JSON(http.StatusOK, emp)
}

// GET /api/employees/company/:companyId
func (s *Server) ListEmployees(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.employeesOf(c.Param("companyId")))
}

func newToken() string {
	return "stub-" + uuid.New().String()
}
