package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
	"gopkg.in/yaml.v3"
)

// SessionFileName is the session file kept under the base path.
const SessionFileName = ".onboard_session.yaml"

// Persisted key names. The values mirror what the web client kept in
// browser storage so that a session file can be inspected by hand.
const (
	KeyActorType   = "user_type"
	KeyAccessToken = "access_token"
	KeyEmployee    = "employee"
	KeyCompany     = "company-storage"
)

// LegacyKeys lists key names written by earlier client versions. Clear
// removes them too so that no ghost session survives a logout.
var LegacyKeys = []string{
	"company",
	"chat-storage",
	"resources-storage",
}

// SessionStore defines the interface for the local persisted session: the
// authenticated actor's identity and token, and the active company record.
// Every setter writes through to disk.
type SessionStore interface {
	SetActiveCompany(company models.Company) error
	GetActiveCompany() (*models.Company, bool)
	IsRegistered() bool
	SetActiveEmployee(employee models.Employee) error
	GetActiveEmployee() (*models.Employee, bool)
	SetActorType(actor models.ActorType) error
	ActorType() models.ActorType
	SetToken(token string) error
	Token() string
	Clear() error
	Keys() []string
	Load() error
	Save() error
}

// SessionFile is the top-level structure of the session file.
type SessionFile struct {
	Version string            `yaml:"version"`
	Updated time.Time         `yaml:"updated,omitempty"`
	Entries map[string]string `yaml:"entries"`
}

// storedCompany is the on-disk company record. LegacyID is only ever read.
type storedCompany struct {
	ID          string    `yaml:"id,omitempty"`
	LegacyID    string    `yaml:"_id,omitempty"`
	Name        string    `yaml:"name"`
	Industry    string    `yaml:"industry,omitempty"`
	Size        string    `yaml:"size,omitempty"`
	ContactName string    `yaml:"contact_name,omitempty"`
	Email       string    `yaml:"email,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty"`
}

type companyEntry struct {
	Company      *storedCompany `yaml:"company"`
	IsRegistered bool           `yaml:"is_registered"`
}

type storedEmployee struct {
	ID         string              `yaml:"id,omitempty"`
	LegacyID   string              `yaml:"_id,omitempty"`
	Name       string              `yaml:"name"`
	Email      string              `yaml:"email,omitempty"`
	CompanyID  string              `yaml:"company_id"`
	Department string              `yaml:"department,omitempty"`
	Tags       models.EmployeeTags `yaml:"tags,omitempty"`
	CreatedAt  time.Time           `yaml:"created_at,omitempty"`
}

type fileSessionStore struct {
	path string
	mu   sync.RWMutex
	data SessionFile
}

// NewSessionStore creates a SessionStore backed by .onboard_session.yaml in
// the given base directory.
func NewSessionStore(basePath string) SessionStore {
	return &fileSessionStore{
		path: filepath.Join(basePath, SessionFileName),
		data: SessionFile{
			Version: "1.0",
			Entries: make(map[string]string),
		},
	}
}

// SetActiveCompany stores the company record under its canonical field and
// marks the session as registered.
func (s *fileSessionStore) SetActiveCompany(company models.Company) error {
	entry := companyEntry{
		Company: &storedCompany{
			ID:          company.ID,
			Name:        company.Name,
			Industry:    company.Industry,
			Size:        company.Size,
			ContactName: company.ContactName,
			Email:       company.Email,
			CreatedAt:   company.CreatedAt,
		},
		IsRegistered: true,
	}
	raw, err := yaml.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encoding company record: %w", err)
	}
	return s.set(KeyCompany, string(raw))
}

// GetActiveCompany returns the persisted company. A malformed record is
// reported as absent.
func (s *fileSessionStore) GetActiveCompany() (*models.Company, bool) {
	s.mu.RLock()
	raw, ok := s.data.Entries[KeyCompany]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	entry, err := decodeCompanyEntry(raw)
	if err != nil || entry.Company == nil {
		return nil, false
	}
	c := entry.Company
	id := c.ID
	if id == "" {
		id = c.LegacyID
	}
	return &models.Company{
		ID:          id,
		Name:        c.Name,
		Industry:    c.Industry,
		Size:        c.Size,
		ContactName: c.ContactName,
		Email:       c.Email,
		CreatedAt:   c.CreatedAt,
	}, true
}

// IsRegistered reports whether a company record has been stored.
func (s *fileSessionStore) IsRegistered() bool {
	s.mu.RLock()
	raw, ok := s.data.Entries[KeyCompany]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	entry, err := decodeCompanyEntry(raw)
	if err != nil {
		return false
	}
	return entry.IsRegistered && entry.Company != nil
}

// SetActiveEmployee stores the employee record.
func (s *fileSessionStore) SetActiveEmployee(employee models.Employee) error {
	rec := storedEmployee{
		ID:         employee.ID,
		Name:       employee.Name,
		Email:      employee.Email,
		CompanyID:  employee.CompanyID,
		Department: employee.Department,
		Tags:       employee.Tags,
		CreatedAt:  employee.CreatedAt,
	}
	raw, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encoding employee record: %w", err)
	}
	return s.set(KeyEmployee, string(raw))
}

// GetActiveEmployee returns the persisted employee. A malformed record is
// reported as absent.
func (s *fileSessionStore) GetActiveEmployee() (*models.Employee, bool) {
	s.mu.RLock()
	raw, ok := s.data.Entries[KeyEmployee]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var rec storedEmployee
	if err := yaml.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false
	}
	id := rec.ID
	if id == "" {
		id = rec.LegacyID
	}
	return &models.Employee{
		ID:         id,
		Name:       rec.Name,
		Email:      rec.Email,
		CompanyID:  rec.CompanyID,
		Department: rec.Department,
		Tags:       rec.Tags,
		CreatedAt:  rec.CreatedAt,
	}, true
}

// SetActorType records which kind of actor is logged in.
func (s *fileSessionStore) SetActorType(actor models.ActorType) error {
	if actor == models.ActorNone {
		return s.remove(KeyActorType)
	}
	return s.set(KeyActorType, string(actor))
}

// ActorType returns the logged-in actor kind, or ActorNone.
func (s *fileSessionStore) ActorType() models.ActorType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := models.ActorType(s.data.Entries[KeyActorType]); v {
	case models.ActorCompany, models.ActorEmployee:
		return v
	default:
		return models.ActorNone
	}
}

// SetToken stores the session token.
func (s *fileSessionStore) SetToken(token string) error {
	if token == "" {
		return s.remove(KeyAccessToken)
	}
	return s.set(KeyAccessToken, token)
}

// Token returns the stored session token, or "".
func (s *fileSessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Entries[KeyAccessToken]
}

// Clear erases every key written by login and registration flows,
// including legacy aliases, and persists the empty session.
func (s *fileSessionStore) Clear() error {
	s.mu.Lock()
	for _, k := range []string{KeyActorType, KeyAccessToken, KeyEmployee, KeyCompany} {
		delete(s.data.Entries, k)
	}
	for _, k := range LegacyKeys {
		delete(s.data.Entries, k)
	}
	s.mu.Unlock()
	return s.Save()
}

// Keys returns the persisted key names in sorted order.
func (s *fileSessionStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data.Entries))
	for k := range s.data.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads the session file. A missing or unparseable file yields an
// empty session. Records persisted under the legacy identifier field or
// the legacy company key are repaired once and written back.
func (s *fileSessionStore) Load() error {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.mu.Unlock()
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading session: %w", err)
	}

	var file SessionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		file = SessionFile{}
	}
	if file.Version == "" {
		file.Version = "1.0"
	}
	if file.Entries == nil {
		file.Entries = make(map[string]string)
	}
	s.data = file
	repaired := s.migrateLocked()
	s.mu.Unlock()

	if repaired {
		return s.Save()
	}
	return nil
}

// Save persists the session file to disk.
func (s *fileSessionStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *fileSessionStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("saving session: creating directory: %w", err)
	}
	s.data.Updated = time.Now().UTC()
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	// Two CLI invocations may save at once; the lock plus rename keeps
	// readers from ever seeing a half-written file.
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	defer unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *fileSessionStore) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Entries[key] = value
	return s.saveLocked()
}

func (s *fileSessionStore) remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Entries[key]; !ok {
		return nil
	}
	delete(s.data.Entries, key)
	return s.saveLocked()
}

// migrateLocked back-fills canonical identifiers from legacy ones and moves
// a record stored under the legacy "company" key. Caller holds s.mu.
func (s *fileSessionStore) migrateLocked() bool {
	repaired := false

	if legacy, ok := s.data.Entries["company"]; ok {
		if _, exists := s.data.Entries[KeyCompany]; !exists {
			var c storedCompany
			if err := yaml.Unmarshal([]byte(legacy), &c); err == nil && (c.ID != "" || c.LegacyID != "") {
				if raw, err := yaml.Marshal(&companyEntry{Company: &c, IsRegistered: true}); err == nil {
					s.data.Entries[KeyCompany] = string(raw)
				}
			}
		}
		delete(s.data.Entries, "company")
		repaired = true
	}

	if raw, ok := s.data.Entries[KeyCompany]; ok {
		entry, err := decodeCompanyEntry(raw)
		if err == nil && entry.Company != nil && entry.Company.ID == "" && entry.Company.LegacyID != "" {
			entry.Company.ID = entry.Company.LegacyID
			entry.Company.LegacyID = ""
			if out, err := yaml.Marshal(&entry); err == nil {
				s.data.Entries[KeyCompany] = string(out)
				repaired = true
			}
		}
	}

	if raw, ok := s.data.Entries[KeyEmployee]; ok {
		var rec storedEmployee
		if err := yaml.Unmarshal([]byte(raw), &rec); err == nil && rec.ID == "" && rec.LegacyID != "" {
			rec.ID = rec.LegacyID
			rec.LegacyID = ""
			if out, err := yaml.Marshal(&rec); err == nil {
				s.data.Entries[KeyEmployee] = string(out)
				repaired = true
			}
		}
	}

	return repaired
}

func decodeCompanyEntry(raw string) (companyEntry, error) {
	var entry companyEntry
	err := yaml.Unmarshal([]byte(raw), &entry)
	return entry, err
}
