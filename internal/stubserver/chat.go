package stubserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// maxCitedSources caps how many resources a canned answer cites.
const maxCitedSources = 3

// GET /api/conversations/company/:companyId
func (s *Server) ListConversations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.conversationsOf(c.Param("companyId")))
}

type conversationRequest struct {
	CompanyID string `json:"companyId"`
	Title     string `json:"title"`
}

// POST /api/conversations
func (s *Server) CreateConversation(c echo.Context) error {
	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	conv, err := s.store.addConversation(req.CompanyID, req.Title)
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusCreated, conv)
}

// GET /api/messages/conversation/:conversationId
func (s *Server) ListMessages(c echo.Context) error {
	msgs, err := s.store.messagesOf(c.Param("conversationId"))
	if err != nil {
		return storeError(c, err, "conversation")
	}
	return c.JSON(http.StatusOK, msgs)
}

type messageRequest struct {
	ConversationID string         `json:"conversationId"`
	Content        string         `json:"content"`
	Role           string         `json:"role"`
	Sources        []sourceRecord `json:"sources"`
}

// POST /api/messages
func (s *Server) CreateMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Role != "user" && req.Role != "assistant" {
		return errorJSON(c, http.StatusBadRequest, "role must be user or assistant")
	}
	msg, err := s.store.addMessage(messageRecord{
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Content:        req.Content,
		Sources:        req.Sources,
	})
	if err != nil {
		return storeError(c, err, "conversation")
	}
	return c.JSON(http.StatusCreated, msg)
}

type chatRequest struct {
	Query     string `json:"query"`
	CompanyID string `json:"companyId"`
}

type answerResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Content string         `json:"content,omitempty"`
	Sources []sourceRecord `json:"sources"`
}

// Chat answers a query with canned text citing the company's resources.
// The answer is returned under the legacy "answer" key.
// POST /api/ai/chat
func (s *Server) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	company, err := s.store.company(req.CompanyID)
	if err != nil {
		return storeError(c, err, "company")
	}

	resources := s.store.resourcesOf(company.ID)
	if len(resources) == 0 {
		return c.JSON(http.StatusOK, answerResponse{
			Answer:  fmt.Sprintf("I couldn't find anything about %q in %s's onboarding resources yet. Ask your HR contact to upload the handbook.", req.Query, company.Name),
			Sources: []sourceRecord{},
		})
	}

	cited := citeResources(resources)
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what %s's onboarding resources say about %q:\n", company.Name, req.Query)
	for _, src := range cited {
		fmt.Fprintf(&b, "- %s\n", src.Title)
	}
	return c.JSON(http.StatusOK, answerResponse{Answer: strings.TrimSuffix(b.String(), "\n"), Sources: cited})
}

type welcomeRequest struct {
	CompanyID    string        `json:"companyId"`
	EmployeeName string        `json:"employeeName"`
	Department   string        `json:"department"`
	Tags         *employeeTags `json:"tags"`
}

// Welcome greets a new employee by name.
// POST /api/ai/welcome
func (s *Server) Welcome(c echo.Context) error {
	var req welcomeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	company, err := s.store.company(req.CompanyID)
	if err != nil {
		return storeError(c, err, "company")
	}

	name := req.EmployeeName
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to %s, %s!", company.Name, name)
	if req.Department != "" {
		fmt.Fprintf(&b, " We're glad to have you in %s.", req.Department)
	}
	if req.Tags != nil && len(req.Tags.Skills) > 0 {
		fmt.Fprintf(&b, " Your experience with %s will come in handy.", strings.Join(req.Tags.Skills, ", "))
	}
	b.WriteString(" Ask me anything about your onboarding.")

	return c.JSON(http.StatusOK, answerResponse{
		Content: b.String(),
		Sources: citeResources(s.store.resourcesOf(company.ID)),
	})
}

// citeResources builds source citations for the first few resources. File
// citations carry the excerpt under the legacy "content" key.
func citeResources(resources []resourceRecord) []sourceRecord {
	n := len(resources)
	if n > maxCitedSources {
		n = maxCitedSources
	}
	out := make([]sourceRecord, 0, n)
	for _, r := range resources[:n] {
		src := sourceRecord{Type: r.Type, Title: r.Title, ResourceID: r.ID}
		if r.Type == "file" {
			src.FileName = r.FileName
			src.Content = excerpt(r.data)
		} else {
			src.URL = r.URL
		}
		out = append(out, src)
	}
	return out
}

func excerpt(data []byte) string {
	const excerptRunes = 160
	text := strings.Join(strings.Fields(string(data)), " ")
	if len([]rune(text)) > excerptRunes {
		return string([]rune(text)[:excerptRunes]) + "..."
	}
	return text
}
