package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/audit"
	"github.com/tadasupo/backend/internal/config"
	"github.com/tadasupo/backend/internal/http/middleware"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/lock"
	"github.com/tadasupo/backend/internal/mail"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
	"github.com/tadasupo/backend/internal/service"
	"github.com/tadasupo/backend/internal/settings"
	"github.com/tadasupo/backend/internal/storage"
)

const caseID = "2024-05-01T10:00:00+09:00"

type testServer struct {
	engine   *gin.Engine
	repo     *repository.Repo
	mailbox  *mail.Memory
	filesDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	loc := time.FixedZone("JST", 9*3600)

	mem := rowstore.NewMemory()
	if err := schema.Ensure(ctx, mem); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	repo := repository.New(mem, loc)
	st := settings.New(mem)
	if err := st.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Alice", Email: "alice@example.org", Role: models.RoleStaff, IsActive: true})
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Bob", Email: "bob@example.org", Role: models.RoleStaff, IsActive: true})
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Root", Email: "root@example.org", Role: models.RoleAdmin, IsActive: true})
	_ = repo.AppendCase(ctx, models.Case{ID: caseID, ContactEmail: "office@example.com", OfficeName: "Sakura", RequesterName: "Tanaka"})

	filesDir := t.TempDir()
	files, err := storage.NewLocal(filesDir, "http://localhost/api/files")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	mailbox := mail.NewMemory("support@example.org")
	dispatcher := mail.NewDispatcher(mailbox, nil, zerolog.Nop())
	resolver := identity.New(repo, st)
	svc := &service.CaseService{
		Repo:     repo,
		Settings: st,
		Identity: resolver,
		Audit:    audit.New(repo, zerolog.Nop()),
		Guard:    lock.NewLocal(time.Second),
		Mail:     dispatcher,
		Threads:  dispatcher,
		Files:    files,
		Location: loc,
		Logger:   zerolog.Nop(),
		MailFrom: "support@example.org",
	}
	cfg := config.Config{CORSAllowed: "*", MaxUploadSizeMB: 1}
	engine := Router(cfg, Deps{Service: svc, Identity: resolver, Logger: zerolog.Nop(), FilesDir: filesDir})
	return &testServer{engine: engine, repo: repo, mailbox: mailbox, filesDir: filesDir}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.DevEmailHeader, user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return env.Error.Code
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/cases", "", nil)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED, got %d %s", w.Code, w.Body.String())
	}
}

func TestCaseFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	path := "/api/cases/" + caseID

	w := s.do(t, http.MethodPost, path+"/assign", "alice@example.org", map[string]any{"notify": true, "subject": "Hi {{office}}", "body": "Dear {{name}}"})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	if got := s.mailbox.SentTo("office@example.com"); got != 1 {
		t.Fatalf("expected one mail, got %d", got)
	}

	w = s.do(t, http.MethodPut, path+"/record", "bob@example.org", map[string]any{"content": "x"})
	if w.Code != http.StatusForbidden || errorCode(t, w) != "FORBIDDEN" {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPut, path+"/record", "alice@example.org", map[string]any{
		"status":              "completed",
		"scheduled_date_time": "2024-05-10T14:00",
		"method":              "Phone",
		"content":             "done",
		"new_files":           []map[string]any{{"name": "memo.txt", "data": []byte("hello")}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/cases", "alice@example.org", nil)
	var views []models.CaseView
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode cases: %v", err)
	}
	if len(views) != 1 || views[0].Status != models.StatusCompleted || len(views[0].Attachments) != 1 {
		t.Fatalf("unexpected views %+v", views)
	}
	if views[0].Attachments[0].MimeType == "" || views[0].CurrentFiscalYearCount != 1 {
		t.Fatalf("unexpected attachment or usage %+v", views[0])
	}

	for i := 0; i < 2; i++ {
		if w := s.do(t, http.MethodPost, path+"/reopen", "alice@example.org", nil); w.Code != http.StatusOK {
			t.Fatalf("reopen %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	w = s.do(t, http.MethodPost, path+"/reopen", "alice@example.org", nil)
	if w.Code != http.StatusUnprocessableEntity || errorCode(t, w) != "LIMIT_EXCEEDED" {
		t.Fatalf("expected limit exceeded, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, path+"/threads", "alice@example.org", nil)
	var groups []models.ThreadGroup
	if err := json.Unmarshal(w.Body.Bytes(), &groups); err != nil || len(groups) != 1 {
		t.Fatalf("unexpected threads %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateRecordMultipart(t *testing.T) {
	s := newTestServer(t)
	path := "/api/cases/" + caseID
	if w := s.do(t, http.MethodPost, path+"/assign", "alice@example.org", nil); w.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("payload", `{"status":"inProgress","content":"with file"}`)
	part, _ := mw.CreateFormFile("files", "scan.pdf")
	_, _ = part.Write([]byte("%PDF-1.4 test"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPut, path+"/record", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.DevEmailHeader, "alice@example.org")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("multipart update: %d %s", w.Code, w.Body.String())
	}
	_, rec, _ := s.repo.FindRecord(context.Background(), caseID)
	if len(rec.Attachments) != 1 || rec.Attachments[0].Name != "scan.pdf" || rec.Content != "with file" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFilesRequireIdentity(t *testing.T) {
	s := newTestServer(t)
	if err := os.WriteFile(filepath.Join(s.filesDir, "memo.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w := s.do(t, http.MethodGet, "/api/files/memo.txt", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous download should be rejected, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/files/memo.txt", "alice@example.org", nil)
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Fatalf("download: %d %q", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/files/memo.txt", "alice@example.org", nil); w.Code != http.StatusNotFound {
		t.Fatalf("files must not be served outside /api, got %d", w.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/cases/"+caseID+"/decline", "alice@example.org", map[string]any{"subject": ""})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_ARGUMENT" {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPost, "/api/cases/missing/assign", "alice@example.org", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/api/admin/panel", "alice@example.org", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/admin/panel", "root@example.org", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("panel: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPatch, "/api/admin/settings", "root@example.org", map[string]any{"settings": map[string]string{settings.KeyCaseUsageLimit: "5"}})
	if w.Code != http.StatusOK {
		t.Fatalf("settings: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPost, "/api/admin/cases/"+caseID+"/reassign", "root@example.org", map[string]any{"staff_email": "bob@example.org"})
	if w.Code != http.StatusOK {
		t.Fatalf("reassign: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, "/api/admin/cases/"+caseID, "root@example.org", map[string]any{"office_name": "Momiji", "case_limit_override": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("update case: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, "/api/admin/cases/"+caseID, "root@example.org", map[string]any{"annual_limit_override": 0})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_ARGUMENT" {
		t.Fatalf("zero override should be rejected, got %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, "/api/admin/cases/"+caseID, "root@example.org", map[string]any{"clear_case_limit_override": true})
	if w.Code != http.StatusOK {
		t.Fatalf("clear override: %d %s", w.Code, w.Body.String())
	}
	if _, rec, _ := s.repo.FindRecord(context.Background(), caseID); rec.CaseLimitOverride != nil {
		t.Fatalf("override should be cleared, got %v", *rec.CaseLimitOverride)
	}
	w = s.do(t, http.MethodDelete, "/api/admin/staff/bob@example.org", "root@example.org", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/api/cases", "bob@example.org", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated staff should be rejected, got %d", w.Code)
	}
}
