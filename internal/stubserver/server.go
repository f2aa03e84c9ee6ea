// Package stubserver implements an in-memory stand-in for the onboarding
// backend. It serves the same HTTP surface under /api so the client can be
// developed and tested without the real RAG service.
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Options configures a stub Server.
type Options struct {
	// AccessLog enables echo's request logger.
	AccessLog bool
	Now       func() time.Time
}

// Server is the stub backend.
type Server struct {
	echo  *echo.Echo
	store *store
}

// New creates a stub Server with empty state.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	s := &Server{echo: e, store: newStore(opts.Now)}
	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes mounts every backend route under /api.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/companies", s.RegisterCompany)
	api.POST("/companies/login", s.LoginCompany)
	api.GET("/companies/:id", s.GetCompany)
	api.PATCH("/companies/:id", s.UpdateCompany)

	api.POST("/employees", s.RegisterEmployee)
	api.POST("/employees/login", s.LoginEmployee)
	api.PATCH("/employees/:id", s.UpdateEmployee)
	api.GET("/employees/company/:companyId", s.ListEmployees)

	api.GET("/resources/company/:companyId", s.ListResources)
	api.POST("/resources/upload", s.UploadResource)
	api.POST("/resources/url", s.AddURLResource)
	api.DELETE("/resources/:id", s.DeleteResource)
	api.GET("/resources/:id/download", s.DownloadResource)

	api.GET("/conversations/company/:companyId", s.ListConversations)
	api.POST("/conversations", s.CreateConversation)
	api.GET("/messages/conversation/:conversationId", s.ListMessages)
	api.POST("/messages", s.CreateMessage)

	api.POST("/ai/chat", s.Chat)
	api.POST("/ai/welcome", s.Welcome)
}

// Handler returns the server as an http.Handler, for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server is shut down.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// storeError maps store errors onto HTTP statuses.
func storeError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, errNotFound):
		return errorJSON(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, errDuplicate):
		return errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, errBadCredential):
		return errorJSON(c, http.StatusUnauthorized, err.Error())
	default:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
}
