package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/digicsc/sevaflow/internal/models"
	"github.com/digicsc/sevaflow/internal/store"
)

// stubEngine is a scripted DialogueEngine for handler tests.
type stubEngine struct {
	reply   string
	err     error
	session *models.CollectionSession

	lastSessionKey string
	lastMessage    string
	lastHint       string
	lastLanguage   string
}

func (e *stubEngine) HandleTurn(_ context.Context, sessionKey, documentTypeHint, message, language string) (string, error) {
	e.lastSessionKey = sessionKey
	e.lastHint = documentTypeHint
	e.lastMessage = message
	e.lastLanguage = language
	return e.reply, e.err
}

func (e *stubEngine) ActiveSession(_ context.Context, sessionKey string) (*models.CollectionSession, error) {
	if sessionKey == "" {
		return nil, models.ErrEmptySessionKey
	}
	return e.session, e.err
}

func (e *stubEngine) CancelSession(_ context.Context, sessionKey string) error {
	if e.err != nil {
		return e.err
	}
	if e.session == nil {
		return models.ErrNoActiveSession
	}
	e.session = nil
	return nil
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestMessageHandler(t *testing.T) {
	engine := &stubEngine{reply: "Please provide your full name:"}
	server := NewServer(engine, store.NewInMemoryStore())

	body := `{"session_key":"user-1","message":"apply pan card","document_type":"pan_card","language":"hindi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["reply"] != "Please provide your full name:" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}

	if engine.lastSessionKey != "user-1" || engine.lastHint != "pan_card" || engine.lastLanguage != "hindi" {
		t.Errorf("engine called with wrong arguments: %+v", engine)
	}
}

func TestMessageHandlerValidation(t *testing.T) {
	server := NewServer(&stubEngine{}, store.NewInMemoryStore())

	cases := []string{
		`not json`,
		`{"message":"hello"}`,
		`{"session_key":"user-1","message":"  "}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestGetSessionHandler(t *testing.T) {
	session := &models.CollectionSession{
		SessionKey:   "user-1",
		DocumentType: models.DocumentTypePANCard,
		FieldIndex:   2,
		Fields:       map[string]string{"name": "Ramesh Kumar"},
	}
	server := NewServer(&stubEngine{session: session}, store.NewInMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/user-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["document_type"] != "pan_card" {
		t.Errorf("unexpected session payload: %+v", resp.Result)
	}
}

func TestGetSessionHandlerNotFound(t *testing.T) {
	server := NewServer(&stubEngine{}, store.NewInMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/user-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteSessionHandler(t *testing.T) {
	engine := &stubEngine{session: &models.CollectionSession{SessionKey: "user-1"}}
	server := NewServer(engine, store.NewInMemoryStore())

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/user-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// A second delete finds nothing.
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/user-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestListSubmissionsHandler(t *testing.T) {
	repo := store.NewInMemoryStore()
	now := time.Now().UTC()
	err := repo.EnqueueSubmission(models.SubmissionRequest{
		ID:           "sub-1",
		SessionKey:   "user-1",
		DocumentType: models.DocumentTypeRTI,
		Fields:       map[string]string{"name": "Asha Rawat"},
		EnqueuedAt:   now,
	}, now)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	server := NewServer(&stubEngine{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/submissions?session_key=user-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"sub-1"`) || !strings.Contains(body, `"queued"`) {
		t.Errorf("unexpected submissions payload: %s", body)
	}
	if strings.Contains(body, "payload_json") {
		t.Errorf("raw payload must not be exposed: %s", body)
	}

	// Missing session_key parameter.
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/submissions", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without session_key, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	server := NewServer(&stubEngine{}, store.NewInMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
