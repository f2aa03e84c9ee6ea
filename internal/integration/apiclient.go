package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// ErrNotFound is wrapped by APIError for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is returned for any non-2xx backend response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s", e.Status)
}

// Unwrap lets callers match 404s with errors.Is(err, ErrNotFound).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// APIClient is the single point of HTTP access to the onboarding backend.
// Every returned record is normalized to its canonical identifier field.
type APIClient interface {
	RegisterCompany(ctx context.Context, reg models.CompanyRegistration) (*models.Company, error)
	LoginCompany(ctx context.Context, creds models.Credentials) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	UpdateCompany(ctx context.Context, id string, upd models.CompanyUpdate) (*models.Company, error)

	RegisterEmployee(ctx context.Context, reg models.EmployeeRegistration) (*models.EmployeeSession, error)
	LoginEmployee(ctx context.Context, creds models.Credentials) (*models.EmployeeSession, error)
	UpdateEmployee(ctx context.Context, id string, upd models.EmployeeUpdate) (*models.Employee, error)
	ListEmployees(ctx context.Context, companyID string) ([]models.Employee, error)

	ListResources(ctx context.Context, companyID string) ([]models.Resource, error)
	UploadFile(ctx context.Context, companyID, fileName string, content io.Reader, title string) (*models.Resource, error)
	AddURL(ctx context.Context, companyID, rawURL, title string) (*models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	DownloadResource(ctx context.Context, id string, w io.Writer) (int64, error)

	ListConversations(ctx context.Context, companyID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, companyID, title string) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, content string, role models.Role, sources []models.Source) (*models.Message, error)
	Query(ctx context.Context, query, companyID string) (*models.RAGAnswer, error)
	GenerateWelcome(ctx context.Context, req models.WelcomeRequest) (*models.RAGAnswer, error)
}

// APIClientConfig configures an APIClient.
type APIClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// Token returns the bearer token to send, or "" for none.
	Token func() string
}

type httpAPIClient struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
}

// NewAPIClient creates an APIClient for the backend at cfg.BaseURL.
func NewAPIClient(cfg APIClientConfig) APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpAPIClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      cfg.Token,
	}
}

// --- Companies ---

func (c *httpAPIClient) RegisterCompany(ctx context.Context, reg models.CompanyRegistration) (*models.Company, error) {
	var w wireCompany
	if err := c.doJSON(ctx, http.MethodPost, "/companies", reg, &w); err != nil {
		return nil, fmt.Errorf("registering company: %w", err)
	}
	company := normalizeCompany(w)
	return &company, nil
}

func (c *httpAPIClient) LoginCompany(ctx context.Context, creds models.Credentials) (*models.Company, error) {
	var w wireCompany
	if err := c.doJSON(ctx, http.MethodPost, "/companies/login", creds, &w); err != nil {
		return nil, fmt.Errorf("logging in company: %w", err)
	}
	company := normalizeCompany(w)
	return &company, nil
}

func (c *httpAPIClient) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var w wireCompany
	if err := c.doJSON(ctx, http.MethodGet, "/companies/"+url.PathEscape(id), nil, &w); err != nil {
		return nil, fmt.Errorf("getting company %s: %w", id, err)
	}
	company := normalizeCompany(w)
	return &company, nil
}

func (c *httpAPIClient) UpdateCompany(ctx context.Context, id string, upd models.CompanyUpdate) (*models.Company, error) {
	var w wireCompany
	if err := c.doJSON(ctx, http.MethodPatch, "/companies/"+url.PathEscape(id), upd, &w); err != nil {
		return nil, fmt.Errorf("updating company %s: %w", id, err)
	}
	company := normalizeCompany(w)
	return &company, nil
}

// --- Employees ---

func (c *httpAPIClient) RegisterEmployee(ctx context.Context, reg models.EmployeeRegistration) (*models.EmployeeSession, error) {
	var w wireEmployee
	if err := c.doJSON(ctx, http.MethodPost, "/employees", reg, &w); err != nil {
		return nil, fmt.Errorf("registering employee: %w", err)
	}
	return &models.EmployeeSession{Employee: normalizeEmployee(w), AccessToken: w.AccessToken}, nil
}

func (c *httpAPIClient) LoginEmployee(ctx context.Context, creds models.Credentials) (*models.EmployeeSession, error) {
	var w wireEmployee
	if err := c.doJSON(ctx, http.MethodPost, "/employees/login", creds, &w); err != nil {
		return nil, fmt.Errorf("logging in employee: %w", err)
	}
	return &models.EmployeeSession{Employee: normalizeEmployee(w), AccessToken: w.AccessToken}, nil
}

func (c *httpAPIClient) UpdateEmployee(ctx context.Context, id string, upd models.EmployeeUpdate) (*models.Employee, error) {
	var w wireEmployee
	if err := c.doJSON(ctx, http.MethodPatch, "/employees/"+url.PathEscape(id), upd, &w); err != nil {
		return nil, fmt.Errorf("updating employee %s: %w", id, err)
	}
	employee := normalizeEmployee(w)
	return &employee, nil
}

func (c *httpAPIClient) ListEmployees(ctx context.Context, companyID string) ([]models.Employee, error) {
	var ws []wireEmployee
	if err := c.doJSON(ctx, http.MethodGet, "/employees/company/"+url.PathEscape(companyID), nil, &ws); err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	out := make([]models.Employee, len(ws))
	for i, w := range ws {
		out[i] = normalizeEmployee(w)
	}
	return out, nil
}

// --- Resources ---

func (c *httpAPIClient) ListResources(ctx context.Context, companyID string) ([]models.Resource, error) {
	var ws []wireResource
	if err := c.doJSON(ctx, http.MethodGet, "/resources/company/"+url.PathEscape(companyID), nil, &ws); err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	out := make([]models.Resource, len(ws))
	for i, w := range ws {
		out[i] = normalizeResource(w)
	}
	return out, nil
}

// UploadFile sends the file as multipart form data with fields file,
// companyId and an optional title.
func (c *httpAPIClient) UploadFile(ctx context.Context, companyID, fileName string, content io.Reader, title string) (*models.Resource, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("uploading file: creating form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("uploading file: reading %s: %w", fileName, err)
	}
	if err := mw.WriteField("companyId", companyID); err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			return nil, fmt.Errorf("uploading file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/resources/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var w wireResource
	if err := c.do(req, &w); err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	resource := normalizeResource(w)
	return &resource, nil
}

func (c *httpAPIClient) AddURL(ctx context.Context, companyID, rawURL, title string) (*models.Resource, error) {
	payload := map[string]string{"companyId": companyID, "url": rawURL, "title": title}
	var w wireResource
	if err := c.doJSON(ctx, http.MethodPost, "/resources/url", payload, &w); err != nil {
		return nil, fmt.Errorf("adding url resource: %w", err)
	}
	resource := normalizeResource(w)
	return &resource, nil
}

func (c *httpAPIClient) DeleteResource(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/resources/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	return nil
}

// DownloadResource streams the stored file into w.
func (c *httpAPIClient) DownloadResource(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/resources/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return 0, fmt.Errorf("downloading resource %s: %w", id, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading resource %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, fmt.Errorf("downloading resource %s: %w", id, err)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading resource %s: %w", id, err)
	}
	return n, nil
}

// --- Chat ---

func (c *httpAPIClient) ListConversations(ctx context.Context, companyID string) ([]models.Conversation, error) {
	var ws []wireConversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/company/"+url.PathEscape(companyID), nil, &ws); err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	out := make([]models.Conversation, len(ws))
	for i, w := range ws {
		out[i] = normalizeConversation(w)
	}
	return out, nil
}

func (c *httpAPIClient) CreateConversation(ctx context.Context, companyID, title string) (*models.Conversation, error) {
	payload := map[string]string{"companyId": companyID, "title": title}
	var w wireConversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", payload, &w); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	conv := normalizeConversation(w)
	return &conv, nil
}

func (c *httpAPIClient) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var ws []wireMessage
	if err := c.doJSON(ctx, http.MethodGet, "/messages/conversation/"+url.PathEscape(conversationID), nil, &ws); err != nil {
		return nil, fmt.Errorf("getting messages: %w", err)
	}
	out := make([]models.Message, len(ws))
	for i, w := range ws {
		out[i] = normalizeMessage(w)
	}
	return out, nil
}

func (c *httpAPIClient) SendMessage(ctx context.Context, conversationID, content string, role models.Role, sources []models.Source) (*models.Message, error) {
	payload := struct {
		ConversationID string       `json:"conversationId"`
		Content        string       `json:"content"`
		Role           models.Role  `json:"role"`
		Sources        []wireSource `json:"sources,omitempty"`
	}{
		ConversationID: conversationID,
		Content:        content,
		Role:           role,
	}
	for _, s := range sources {
		payload.Sources = append(payload.Sources, wireFromSource(s))
	}

	var w wireMessage
	if err := c.doJSON(ctx, http.MethodPost, "/messages", payload, &w); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	msg := normalizeMessage(w)
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	return &msg, nil
}

// Query asks the retrieval-augmented endpoint a question scoped to a company.
func (c *httpAPIClient) Query(ctx context.Context, query, companyID string) (*models.RAGAnswer, error) {
	payload := map[string]string{"query": query, "companyId": companyID}
	var w wireAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/ai/chat", payload, &w); err != nil {
		return nil, fmt.Errorf("querying assistant: %w", err)
	}
	answer := normalizeAnswer(w)
	return &answer, nil
}

func (c *httpAPIClient) GenerateWelcome(ctx context.Context, req models.WelcomeRequest) (*models.RAGAnswer, error) {
	var w wireAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/ai/welcome", req, &w); err != nil {
		return nil, fmt.Errorf("generating welcome: %w", err)
	}
	answer := normalizeAnswer(w)
	return &answer, nil
}

// --- Transport ---

func (c *httpAPIClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// doJSON sends payload (if any) as a JSON body and decodes the response
// into out (if non-nil).
func (c *httpAPIClient) doJSON(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *httpAPIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	status := http.StatusText(resp.StatusCode)
	if status == "" {
		status = resp.Status
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       strings.TrimSpace(string(body)),
	}
}
