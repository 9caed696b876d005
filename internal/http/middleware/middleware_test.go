package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
	"github.com/tadasupo/backend/internal/settings"
)

func newResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	ctx := context.Background()
	mem := rowstore.NewMemory()
	if err := schema.Ensure(ctx, mem); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	repo := repository.New(mem, time.UTC)
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Alice", Email: "alice@example.org", Role: models.RoleStaff, IsActive: true})
	_ = repo.AppendStaff(ctx, models.Staff{Name: "Root", Email: "root@example.org", Role: models.RoleAdmin, IsActive: true})
	st := settings.New(mem)
	_ = st.Reload(ctx)
	return identity.New(repo, st)
}

func newEngine(resolver *identity.Resolver, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity(resolver, secret))
	r.GET("/me", func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.String(http.StatusOK, actor.Email)
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestIdentityDevHeader(t *testing.T) {
	r := newEngine(newResolver(t), "")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(DevEmailHeader, "ALICE@example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice@example.org" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(DevEmailHeader, "stranger@example.org")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestIdentityJWT(t *testing.T) {
	secret := "s3cret"
	r := newEngine(newResolver(t), secret)

	sign := func(key string, email string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Email:            email,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})
		s, err := tok.SignedString([]byte(key))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(secret, "alice@example.org"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign("other", "alice@example.org"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(DevEmailHeader, "alice@example.org")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("dev header must be ignored when a secret is set, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine(newResolver(t), "")
	for email, want := range map[string]int{
		"alice@example.org": http.StatusForbidden,
		"root@example.org":  http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(DevEmailHeader, email)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", email, want, w.Code)
		}
	}
}
