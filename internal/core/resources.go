package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/onboard-ai/pkg/models"
)

// ErrNoCompany is returned by resource operations when no company is
// logged in.
var ErrNoCompany = errors.New("No company registered")

// UploadResult reports the outcome of one upload in a batch.
type UploadResult struct {
	Path     string
	Resource *models.Resource
	Err      error
}

// ResourceLibrary manages the knowledge resources of the logged-in company.
type ResourceLibrary interface {
	List(ctx context.Context) ([]models.Resource, error)
	UploadFile(ctx context.Context, path, title string) (*models.Resource, error)
	AddURL(ctx context.Context, rawURL, title string) (*models.Resource, error)
	Delete(ctx context.Context, id string) error
	Download(ctx context.Context, id, dir string) (string, error)
	UploadEach(ctx context.Context, paths <-chan string, report func(UploadResult)) error
}

type resourceLibrary struct {
	gateway ResourceGateway
	session SessionContext
	logger  EventLogger
}

// NewResourceLibrary creates a ResourceLibrary for the company in session.
func NewResourceLibrary(gateway ResourceGateway, session SessionContext, logger EventLogger) ResourceLibrary {
	return &resourceLibrary{gateway: gateway, session: session, logger: logger}
}

func (l *resourceLibrary) companyID() (string, error) {
	if l.session.ActorType() != models.ActorCompany {
		return "", ErrNoCompany
	}
	c, ok := l.session.GetActiveCompany()
	if !ok || c.ID == "" {
		return "", ErrNoCompany
	}
	return c.ID, nil
}

// List returns the company's resources. A failed fetch yields an empty
// list and is recorded in the event log rather than returned.
func (l *resourceLibrary) List(ctx context.Context) ([]models.Resource, error) {
	companyID, err := l.companyID()
	if err != nil {
		return nil, err
	}
	res, err := l.gateway.ListResources(ctx, companyID)
	if err != nil {
		l.logEvent("resource.list_failed", map[string]any{"company_id": companyID, "error": err.Error()})
		return []models.Resource{}, nil
	}
	if res == nil {
		res = []models.Resource{}
	}
	return res, nil
}

// UploadFile uploads the file at path. The title defaults to the file name.
func (l *resourceLibrary) UploadFile(ctx context.Context, path, title string) (*models.Resource, error) {
	companyID, err := l.companyID()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	if title == "" {
		title = name
	}
	res, err := l.gateway.UploadFile(ctx, companyID, name, f, title)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", name, err)
	}
	l.logEvent("resource.uploaded", map[string]any{"company_id": companyID, "resource_id": res.ID, "file_name": name})
	return res, nil
}

// AddURL registers a link resource. The title defaults to the URL's host.
func (l *resourceLibrary) AddURL(ctx context.Context, rawURL, title string) (*models.Resource, error) {
	companyID, err := l.companyID()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}
	if title == "" {
		title = u.Hostname()
	}
	res, err := l.gateway.AddURL(ctx, companyID, rawURL, title)
	if err != nil {
		return nil, fmt.Errorf("adding url: %w", err)
	}
	l.logEvent("resource.added", map[string]any{"company_id": companyID, "resource_id": res.ID, "url": rawURL})
	return res, nil
}

func (l *resourceLibrary) Delete(ctx context.Context, id string) error {
	companyID, err := l.companyID()
	if err != nil {
		return err
	}
	if err := l.gateway.DeleteResource(ctx, id); err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	l.logEvent("resource.deleted", map[string]any{"company_id": companyID, "resource_id": id})
	return nil
}

// Download writes the resource's bytes into a new file in dir, named after
// the resource, and returns the written path. An existing file is never
// overwritten.
func (l *resourceLibrary) Download(ctx context.Context, id, dir string) (string, error) {
	companyID, err := l.companyID()
	if err != nil {
		return "", err
	}
	name := downloadName(models.Resource{ID: id})
	if all, err := l.gateway.ListResources(ctx, companyID); err == nil {
		for _, r := range all {
			if r.ID == id {
				name = downloadName(r)
				break
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := l.gateway.DownloadResource(ctx, id, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("downloading resource %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// UploadEach uploads every path received until the channel closes or ctx
// is done. Individual failures are reported and do not stop the loop.
func (l *resourceLibrary) UploadEach(ctx context.Context, paths <-chan string, report func(UploadResult)) error {
	if _, err := l.companyID(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			res, err := l.UploadFile(ctx, p, "")
			if report != nil {
				report(UploadResult{Path: p, Resource: res, Err: err})
			}
		}
	}
}

// downloadName picks a file name from the resource's file name, title or
// identifier, in that order, with path separators replaced.
func downloadName(r models.Resource) string {
	for _, candidate := range []string{r.FileName, r.Title, r.ID} {
		if name := safeFileName(candidate); name != "" {
			return name
		}
	}
	return "resource"
}

func safeFileName(name string) string {
	name = strings.Map(func(c rune) rune {
		switch c {
		case '/', '\\', ':', 0:
			return '_'
		}
		return c
	}, strings.TrimSpace(name))
	if name == "." || name == ".." {
		return ""
	}
	return name
}

func (l *resourceLibrary) logEvent(eventType string, data map[string]any) {
	if l.logger == nil {
		return
	}
	_ = l.logger.LogEvent(eventType, data)
}
