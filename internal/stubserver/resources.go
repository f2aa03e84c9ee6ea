package stubserver

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxUploadBytes = 32 << 20

// GET /api/resources/company/:companyId
func (s *Server) ListResources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.resourcesOf(c.Param("companyId")))
}

// UploadResource stores a multipart file upload.
// POST /api/resources/upload
func (s *Server) UploadResource(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "file is required")
	}
	companyID := c.FormValue("companyId")
	if companyID == "" {
		return errorJSON(c, http.StatusBadRequest, "companyId is required")
	}

	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "reading upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "reading upload")
	}
	if len(data) > maxUploadBytes {
		return errorJSON(c, http.StatusRequestEntityTooLarge, "file too large")
	}

	title := c.FormValue("title")
	if title == "" {
		title = fh.Filename
	}
	res, err := s.store.addResource(resourceRecord{
		CompanyID: companyID,
		Type:      "file",
		Title:     title,
		FileName:  fh.Filename,
		data:      data,
	})
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusCreated, res)
}

type urlRequest struct {
	CompanyID string `json:"companyId"`
	URL       string `json:"url"`
	Title     string `json:"title"`
}

// AddURLResource registers a link.
// POST /api/resources/url
func (s *Server) AddURLResource(c echo.Context) error {
	var req urlRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return errorJSON(c, http.StatusBadRequest, "a valid url is required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = u.Hostname()
	}
	res, err := s.store.addResource(resourceRecord{
		CompanyID: req.CompanyID,
		Type:      "url",
		Title:     title,
		URL:       req.URL,
	})
	if err != nil {
		return storeError(c, err, "company")
	}
	return c.JSON(http.StatusCreated, res)
}

// DELETE /api/resources/:id
func (s *Server) DeleteResource(c echo.Context) error {
	if err := s.store.deleteResource(c.Param("id")); err != nil {
		return storeError(c, err, "resource")
	}
	return c.NoContent(http.StatusNoContent)
}

// DownloadResource streams a file resource's bytes.
// GET /api/resources/:id/download
func (s *Server) DownloadResource(c echo.Context) error {
	res, err := s.store.resource(c.Param("id"))
	if err != nil {
		return storeError(c, err, "resource")
	}
	if res.Type != "file" {
		return errorJSON(c, http.StatusBadRequest, "resource is not a file")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+res.FileName+`"`)
	return c.Blob(http.StatusOK, http.DetectContentType(res.data), res.data)
}
