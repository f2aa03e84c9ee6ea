package stubserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func newTestServer() *Server {
	return New(Options{Now: fixedNow})
}

// do sends a request through the full echo router.
func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registerCompany(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/companies", map[string]string{
		"name": "Acme", "email": "hr@acme.test", "password": "secret", "industry": "Software",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decodeBody(t, rec)["_id"].(string)
	require.Len(t, id, 24)
	return id
}

func TestRegisterCompany_UsesLegacyID(t *testing.T) {
	s := newTestServer()
	rec := do(t, s, http.MethodPost, "/api/companies", map[string]string{"name": "Acme", "email": "hr@acme.test"})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "_id")
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "password")
	assert.Equal(t, "Acme", body["name"])
}

func TestRegisterCompany_Validation(t *testing.T) {
	s := newTestServer()
	rec := do(t, s, http.MethodPost, "/api/companies", map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterCompany_DuplicateEmail(t *testing.T) {
	s := newTestServer()
	registerCompany(t, s)
	rec := do(t, s, http.MethodPost, "/api/companies", map[string]string{"name": "Other", "email": "HR@acme.test"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginCompany(t *testing.T) {
	s := newTestServer()
	id := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/companies/login", map[string]string{"email": "hr@acme.test", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeBody(t, rec)["_id"])

	rec = do(t, s, http.MethodPost, "/api/companies/login", map[string]string{"email": "hr@acme.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetAndUpdateCompany(t *testing.T) {
	s := newTestServer()
	id := registerCompany(t, s)

	rec := do(t, s, http.MethodPatch, "/api/companies/"+id, map[string]string{"size": "51-200"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/companies/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "51-200", body["size"])
	assert.Equal(t, "Acme", body["name"])

	rec = do(t, s, http.MethodGet, "/api/companies/ffffffffffffffffffffffff", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterEmployee(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/employees", map[string]any{
		"name": "Sam", "email": "sam@acme.test", "password": "pw", "companyId": companyID,
		"department": "Engineering", "tags": map[string][]string{"skills": {"Go"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, companyID, body["companyId"])

	rec = do(t, s, http.MethodGet, "/api/employees/company/"+companyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "access_token")
}

func TestRegisterEmployee_UnknownCompany(t *testing.T) {
	s := newTestServer()
	rec := do(t, s, http.MethodPost, "/api/employees", map[string]any{
		"email": "sam@acme.test", "password": "pw", "companyId": "ffffffffffffffffffffffff",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAndDownloadResource(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "handbook.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Day one: collect your laptop."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("companyId", companyID))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resources/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decodeBody(t, rec)
	assert.Equal(t, "file", res["type"])
	assert.Equal(t, "handbook.txt", res["title"])
	id := res["_id"].(string)

	rec = do(t, s, http.MethodGet, "/api/resources/"+id+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Day one: collect your laptop.", rec.Body.String())
}

func TestAddURLDefaultsTitleToHost(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/resources/url", map[string]string{"companyId": companyID, "url": "https://wiki.acme.test/start"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "wiki.acme.test", decodeBody(t, rec)["title"])

	rec = do(t, s, http.MethodPost, "/api/resources/url", map[string]string{"companyId": companyID, "url": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteResource(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)
	rec := do(t, s, http.MethodPost, "/api/resources/url", map[string]string{"companyId": companyID, "url": "https://a.test"})
	id := decodeBody(t, rec)["_id"].(string)

	rec = do(t, s, http.MethodDelete, "/api/resources/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/resources/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationAndMessages(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/conversations", map[string]string{"companyId": companyID})
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody(t, rec)["_id"].(string)

	for _, role := range []string{"user", "assistant"} {
		rec = do(t, s, http.MethodPost, "/api/messages", map[string]any{
			"conversationId": convID, "content": role + " says hi", "role": role,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/messages", map[string]any{"conversationId": convID, "content": "x", "role": "system"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/messages/conversation/"+convID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "assistant", msgs[1]["role"])

	rec = do(t, s, http.MethodGet, "/api/conversations/company/"+companyID, nil)
	var convs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	assert.Len(t, convs, 1)
}

func TestChat_NoResources(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/ai/chat", map[string]string{"query": "PTO policy?", "companyId": companyID})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["answer"], "couldn't find anything")
	assert.Empty(t, body["sources"])
}

func TestChat_CitesResources(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)
	for _, u := range []string{"https://a.test", "https://b.test", "https://c.test", "https://d.test"} {
		do(t, s, http.MethodPost, "/api/resources/url", map[string]string{"companyId": companyID, "url": u})
	}

	rec := do(t, s, http.MethodPost, "/api/ai/chat", map[string]string{"query": "Where do I start?", "companyId": companyID})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	sources, _ := body["sources"].([]any)
	assert.Len(t, sources, maxCitedSources)
	assert.Contains(t, body["answer"], "a.test")
}

func TestWelcome(t *testing.T) {
	s := newTestServer()
	companyID := registerCompany(t, s)

	rec := do(t, s, http.MethodPost, "/api/ai/welcome", map[string]any{
		"companyId": companyID, "employeeName": "Sam", "department": "Engineering",
		"tags": map[string][]string{"skills": {"Go", "SQL"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	content, _ := decodeBody(t, rec)["content"].(string)
	assert.Contains(t, content, "Welcome to Acme, Sam!")
	assert.Contains(t, content, "Engineering")
	assert.Contains(t, content, "Go, SQL")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", excerpt([]byte("  a\n b\t c ")))
	long := bytes.Repeat([]byte("x"), 200)
	got := excerpt(long)
	assert.Len(t, []rune(got), 163)
	assert.Contains(t, got, "...")
}
