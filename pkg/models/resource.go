package models

import "time"

// ResourceType distinguishes uploaded files from linked URLs.
type ResourceType string

const (
	ResourceFile ResourceType = "file"
	ResourceURL  ResourceType = "url"
)

// Resource is a piece of onboarding knowledge contributed by a company.
// FileURL is set for file resources, URL for url resources.
type Resource struct {
	ID        string       `json:"id"`
	CompanyID string       `json:"companyId"`
	Type      ResourceType `json:"type"`
	Title     string       `json:"title"`
	URL       string       `json:"url,omitempty"`
	FileURL   string       `json:"fileUrl,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Location returns the variant-specific location of the resource.
func (r Resource) Location() string {
	if r.Type == ResourceFile {
		return r.FileURL
	}
	return r.URL
}
