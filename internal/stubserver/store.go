package stubserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errNotFound      = errors.New("not found")
	errDuplicate     = errors.New("email already registered")
	errBadCredential = errors.New("invalid email or password")
)

// Records use the backend's legacy "_id" key on the wire.

type companyRecord struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Size        string    `json:"size"`
	ContactName string    `json:"contactName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	password    string
}

type employeeTags struct {
	Roles     []string `json:"roles"`
	Skills    []string `json:"skills"`
	Interests []string `json:"interests"`
}

type employeeRecord struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	CompanyID   string       `json:"companyId"`
	Department  string       `json:"department"`
	Tags        employeeTags `json:"tags"`
	CreatedAt   time.Time    `json:"createdAt"`
	AccessToken string       `json:"access_token,omitempty"`
	password    string
	seq         int
}

type resourceRecord struct {
	ID        string    `json:"_id"`
	CompanyID string    `json:"companyId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	data      []byte
	seq       int
}

type sourceRecord struct {
	Type       string `json:"type,omitempty"`
	Title      string `json:"title,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
	Content    string `json:"content,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	URL        string `json:"url,omitempty"`
}

type conversationRecord struct {
	ID        string    `json:"_id"`
	CompanyID string    `json:"companyId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	seq       int
}

type messageRecord struct {
	ID             string         `json:"_id"`
	ConversationID string         `json:"conversationId"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Sources        []sourceRecord `json:"sources,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// store is the in-memory state of the stub backend. Lists are returned in
// creation order.
type store struct {
	mu            sync.RWMutex
	now           func() time.Time
	companies     map[string]*companyRecord
	employees     map[string]*employeeRecord
	resources     map[string]*resourceRecord
	conversations map[string]*conversationRecord
	messages      map[string][]messageRecord
	seq           int
}

func newStore(now func() time.Time) *store {
	return &store{
		now:           now,
		companies:     make(map[string]*companyRecord),
		employees:     make(map[string]*employeeRecord),
		resources:     make(map[string]*resourceRecord),
		conversations: make(map[string]*conversationRecord),
		messages:      make(map[string][]messageRecord),
	}
}

func (s *store) nextSeq() int {
	s.seq++
	return s.seq
}

// newObjectID returns a 24-hex-character identifier in the backend's format.
func newObjectID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

func (s *store) addCompany(c companyRecord) (companyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.companies {
		if strings.EqualFold(existing.Email, c.Email) {
			return companyRecord{}, errDuplicate
		}
	}
	c.ID = newObjectID()
	c.CreatedAt = s.now()
	s.companies[c.ID] = &c
	return c, nil
}

func (s *store) company(id string) (companyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return companyRecord{}, errNotFound
	}
	return *c, nil
}

func (s *store) loginCompany(email, password string) (companyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.companies {
		if strings.EqualFold(c.Email, email) && c.password == password {
			return *c, nil
		}
	}
	return companyRecord{}, errBadCredential
}

func (s *store) updateCompany(id string, apply func(*companyRecord)) (companyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return companyRecord{}, errNotFound
	}
	apply(c)
	return *c, nil
}

func (s *store) addEmployee(e employeeRecord) (employeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[e.CompanyID]; !ok {
		return employeeRecord{}, errNotFound
	}
	for _, existing := range s.employees {
		if strings.EqualFold(existing.Email, e.Email) {
			return employeeRecord{}, errDuplicate
		}
	}
	e.ID = newObjectID()
	e.CreatedAt = s.now()
	e.seq = s.nextSeq()
	s.employees[e.ID] = &e
	return e, nil
}

func (s *store) loginEmployee(email, password string) (employeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if strings.EqualFold(e.Email, email) && e.password == password {
			return *e, nil
		}
	}
	return employeeRecord{}, errBadCredential
}

func (s *store) updateEmployee(id string, apply func(*employeeRecord)) (employeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return employeeRecord{}, errNotFound
	}
	apply(e)
	return *e, nil
}

func (s *store) employeesOf(companyID string) []employeeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []employeeRecord{}
	for _, e := range s.employees {
		if e.CompanyID == companyID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *store) addResource(r resourceRecord) (resourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[r.CompanyID]; !ok {
		return resourceRecord{}, errNotFound
	}
	r.ID = newObjectID()
	r.CreatedAt = s.now()
	r.seq = s.nextSeq()
	if r.Type == "file" {
		r.FileURL = "/resources/" + r.ID + "/download"
	}
	s.resources[r.ID] = &r
	return r, nil
}

func (s *store) resource(id string) (resourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return resourceRecord{}, errNotFound
	}
	return *r, nil
}

func (s *store) deleteResource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[id]; !ok {
		return errNotFound
	}
	delete(s.resources, id)
	return nil
}

func (s *store) resourcesOf(companyID string) []resourceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []resourceRecord{}
	for _, r := range s.resources {
		if r.CompanyID == companyID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *store) addConversation(companyID, title string) (conversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[companyID]; !ok {
		return conversationRecord{}, errNotFound
	}
	c := conversationRecord{ID: newObjectID(), CompanyID: companyID, Title: title, CreatedAt: s.now(), seq: s.nextSeq()}
	s.conversations[c.ID] = &c
	return c, nil
}

func (s *store) conversationsOf(companyID string) []conversationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []conversationRecord{}
	for _, c := range s.conversations {
		if c.CompanyID == companyID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *store) addMessage(m messageRecord) (messageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return messageRecord{}, errNotFound
	}
	m.ID = newObjectID()
	m.CreatedAt = s.now()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return m, nil
}

func (s *store) messagesOf(conversationID string) ([]messageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, errNotFound
	}
	return append([]messageRecord{}, s.messages[conversationID]...), nil
}
