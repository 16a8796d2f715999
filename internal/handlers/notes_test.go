package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/handlers"
	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/middleware"
	"github.com/soapify/soapify-backend/internal/qdrant"
	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/server"
	"github.com/soapify/soapify-backend/internal/services"
	"github.com/soapify/soapify-backend/internal/types"
)

type stubLLM struct{}

func (stubLLM) Complete(_ context.Context, _ string) (string, error) {
	return "SUBJECTIVE: Headache.\nOBJECTIVE: Not mentioned.\nASSESSMENT: Tension headache.\nPLAN: Rest.", nil
}

func (stubLLM) Provider() string { return "stub" }

type nopVectorStore struct{}

func (nopVectorStore) UpsertDocument(_ context.Context, _ qdrant.Document) error {
	return nil
}

func (nopVectorStore) QueryDocuments(_ context.Context, _ string, _ []float32, _ int) ([]string, error) {
	return nil, nil
}

type nopEmbedder struct{}

func (nopEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gdb.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Patient{},
		&types.Transcript{},
		&types.SOAPNote{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	log := logger.NewNop()
	userRepo := repos.NewUserRepo(gdb, log)
	userTokenRepo := repos.NewUserTokenRepo(gdb, log)
	patientRepo := repos.NewPatientRepo(gdb, log)
	transcriptRepo := repos.NewTranscriptRepo(gdb, log)
	noteRepo := repos.NewSOAPNoteRepo(gdb, log)

	authService := services.NewAuthService(gdb, log, userRepo, userTokenRepo, "test-secret", 15*time.Minute, 24*time.Hour)
	userService := services.NewUserService(gdb, log, userRepo)
	history := services.NewHistoryStore(log, nopVectorStore{}, nopEmbedder{})
	generationService := services.NewSOAPGenerationService(gdb, log, patientRepo, transcriptRepo, noteRepo, stubLLM{}, history)
	noteService := services.NewNoteService(gdb, log, noteRepo, patientRepo)

	return server.NewRouter(server.RouterConfig{
		AuthHandler:    handlers.NewAuthHandler(authService),
		AuthMiddleware: middleware.NewAuthMiddleware(log, authService),
		UserHandler:    handlers.NewUserHandler(userService),
		NoteHandler:    handlers.NewNoteHandler(generationService, noteService),
		HealthHandler:  handlers.NewHealthHandler(gdb, "stub"),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()
	email := fmt.Sprintf("dr-%s@clinic.test", uuid.NewString()[:8])
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":     email,
		"password":  "longenough",
		"full_name": "Dr. Test",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "longenough",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		API      string `json:"api"`
		Database string `json:"database"`
		LLM      string `json:"llm"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.API != "ok" || resp.Database != "ok" || resp.LLM != "stub" {
		t.Fatalf("unexpected health payload %+v", resp)
	}
}

func TestGenerateRequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/v1/notes/generate", "", gin.H{
		"patient_name": "Jane Doe",
		"patient_age":  34,
		"transcript":   "Pt c/o fever",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGenerateMissingAge(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/notes/generate", token, gin.H{
		"patient_name": "Jane Doe",
		"transcript":   "Pt c/o fever",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateAndPollStatus(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/notes/generate", token, gin.H{
		"patient_name": "Jane Doe",
		"patient_age":  34,
		"transcript":   "Pt c/o fever x2 days",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		NoteID     string `json:"note_id"`
		SOAPNumber int    `json:"soap_number"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if created.Status != types.NoteStatusPending {
		t.Fatalf("expected PENDING, got %s", created.Status)
	}
	if created.SOAPNumber != 1 {
		t.Fatalf("expected soap number 1, got %d", created.SOAPNumber)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/notes/"+created.NoteID+"/status", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStatusNotFound(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/v1/notes/"+uuid.NewString()+"/status", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDashboardEmpty(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/v1/notes/dashboard", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Notes []json.RawMessage `json:"notes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dashboard response: %v", err)
	}
	if len(resp.Notes) != 0 {
		t.Fatalf("expected empty dashboard, got %d rows", len(resp.Notes))
	}
}

func TestGetMe(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/v1/users/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var user types.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.FullName != "Dr. Test" {
		t.Fatalf("unexpected user %+v", user)
	}
}
