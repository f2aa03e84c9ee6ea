package integration

import (
	"time"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// Wire shapes as the backend sends them. Any record may carry its
// identifier under "_id" instead of "id"; the normalize functions below
// are the only place that looks at the alternate field.

type wireCompany struct {
	ID          string    `json:"id,omitempty"`
	LegacyID    string    `json:"_id,omitempty"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Size        string    `json:"size"`
	ContactName string    `json:"contactName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

type wireEmployee struct {
	ID          string              `json:"id,omitempty"`
	LegacyID    string              `json:"_id,omitempty"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	CompanyID   string              `json:"companyId"`
	Department  string              `json:"department"`
	Tags        models.EmployeeTags `json:"tags"`
	CreatedAt   time.Time           `json:"createdAt"`
	AccessToken string              `json:"access_token,omitempty"`
}

type wireResource struct {
	ID        string              `json:"id,omitempty"`
	LegacyID  string              `json:"_id,omitempty"`
	CompanyID string              `json:"companyId"`
	Type      models.ResourceType `json:"type"`
	Title     string              `json:"title"`
	URL       string              `json:"url,omitempty"`
	FileURL   string              `json:"fileUrl,omitempty"`
	FileName  string              `json:"fileName,omitempty"`
	Tags      []string            `json:"tags,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

type wireConversation struct {
	ID        string    `json:"id,omitempty"`
	LegacyID  string    `json:"_id,omitempty"`
	CompanyID string    `json:"companyId"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type wireMessage struct {
	ID             string       `json:"id,omitempty"`
	LegacyID       string       `json:"_id,omitempty"`
	ConversationID string       `json:"conversationId"`
	Role           models.Role  `json:"role"`
	Content        string       `json:"content"`
	Sources        []wireSource `json:"sources,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// wireSource covers every citation shape the backend has produced: flat
// fields, a nested resource object, and "content" in place of "excerpt".
type wireSource struct {
	Type       models.ResourceType `json:"type,omitempty"`
	Title      string              `json:"title,omitempty"`
	Excerpt    string              `json:"excerpt,omitempty"`
	Content    string              `json:"content,omitempty"`
	ResourceID string              `json:"resourceId,omitempty"`
	FileName   string              `json:"fileName,omitempty"`
	URL        string              `json:"url,omitempty"`
	Resource   *wireResource       `json:"resource,omitempty"`
}

type wireAnswer struct {
	Content string       `json:"content,omitempty"`
	Answer  string       `json:"answer,omitempty"`
	Sources []wireSource `json:"sources,omitempty"`
}

// canonicalID picks the canonical identifier, falling back to the legacy one.
func canonicalID(id, legacy string) string {
	if id != "" {
		return id
	}
	return legacy
}

func normalizeCompany(w wireCompany) models.Company {
	return models.Company{
		ID:          canonicalID(w.ID, w.LegacyID),
		Name:        w.Name,
		Industry:    w.Industry,
		Size:        w.Size,
		ContactName: w.ContactName,
		Email:       w.Email,
		CreatedAt:   w.CreatedAt,
	}
}

func normalizeEmployee(w wireEmployee) models.Employee {
	return models.Employee{
		ID:         canonicalID(w.ID, w.LegacyID),
		Name:       w.Name,
		Email:      w.Email,
		CompanyID:  w.CompanyID,
		Department: w.Department,
		Tags:       w.Tags,
		CreatedAt:  w.CreatedAt,
	}
}

func normalizeResource(w wireResource) models.Resource {
	return models.Resource{
		ID:        canonicalID(w.ID, w.LegacyID),
		CompanyID: w.CompanyID,
		Type:      w.Type,
		Title:     w.Title,
		URL:       w.URL,
		FileURL:   w.FileURL,
		FileName:  w.FileName,
		Tags:      w.Tags,
		CreatedAt: w.CreatedAt,
	}
}

func normalizeConversation(w wireConversation) models.Conversation {
	return models.Conversation{
		ID:        canonicalID(w.ID, w.LegacyID),
		CompanyID: w.CompanyID,
		Title:     w.Title,
		Messages:  []models.Message{},
		CreatedAt: w.CreatedAt,
	}
}

func normalizeMessage(w wireMessage) models.Message {
	return models.Message{
		ID:             canonicalID(w.ID, w.LegacyID),
		ConversationID: w.ConversationID,
		Role:           w.Role,
		Content:        w.Content,
		Sources:        normalizeSources(w.Sources),
		CreatedAt:      w.CreatedAt,
	}
}

func normalizeSources(ws []wireSource) []models.Source {
	if len(ws) == 0 {
		return nil
	}
	out := make([]models.Source, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizeSource(w))
	}
	return out
}

// normalizeSource maps a backend citation into the canonical Source. Flat
// fields win over the nested resource object.
func normalizeSource(w wireSource) models.Source {
	s := models.Source{
		Type:       w.Type,
		Title:      w.Title,
		Excerpt:    w.Excerpt,
		ResourceID: w.ResourceID,
		FileName:   w.FileName,
		URL:        w.URL,
	}
	if s.Excerpt == "" {
		s.Excerpt = w.Content
	}
	if r := w.Resource; r != nil {
		if s.ResourceID == "" {
			s.ResourceID = canonicalID(r.ID, r.LegacyID)
		}
		if s.Type == "" {
			s.Type = r.Type
		}
		if s.Title == "" {
			s.Title = r.Title
		}
		if s.FileName == "" {
			s.FileName = r.FileName
		}
		if s.URL == "" {
			s.URL = r.URL
		}
	}
	if s.Type == "" {
		if s.URL != "" && s.FileName == "" {
			s.Type = models.ResourceURL
		} else {
			s.Type = models.ResourceFile
		}
	}
	if s.Title == "" {
		s.Title = s.FileName
	}
	return s
}

func normalizeAnswer(w wireAnswer) models.RAGAnswer {
	content := w.Content
	if content == "" {
		content = w.Answer
	}
	return models.RAGAnswer{
		Content: content,
		Sources: normalizeSources(w.Sources),
	}
}

// wireFromSource is the outbound shape used when persisting citations.
func wireFromSource(s models.Source) wireSource {
	return wireSource{
		Type:       s.Type,
		Title:      s.Title,
		Excerpt:    s.Excerpt,
		ResourceID: s.ResourceID,
		FileName:   s.FileName,
		URL:        s.URL,
	}
}
