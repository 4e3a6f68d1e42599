package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldsafe/sentinel/pkg/auth"
)

const testSecret = "test-signing-secret"

// createTestToken signs a JWT with the shared test secret.
func createTestToken(t *testing.T, v *auth.Verifier, sub string, roles []string, expiry time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "sentinel-test",
		},
		Roles: roles,
	}
	token, err := v.Sign(claims)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestMiddleware_ValidJWT(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	middleware := auth.NewMiddleware(verifier)

	var capturedActor *auth.Actor
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := auth.ActorFrom(r.Context())
		if err != nil {
			t.Errorf("expected actor in context: %v", err)
		}
		capturedActor = a
		w.WriteHeader(http.StatusOK)
	}))

	token := createTestToken(t, verifier, "user-123", []string{"inspector"}, time.Now().Add(1*time.Hour))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if capturedActor == nil {
		t.Fatal("actor was not set in context")
	}
	if capturedActor.ID != "user-123" {
		t.Errorf("expected subject 'user-123', got %q", capturedActor.ID)
	}
	if !capturedActor.HasRole(auth.RoleInspector) {
		t.Error("expected inspector role")
	}
	if capturedActor.IsReviewer() {
		t.Error("inspector should not pass reviewer gate")
	}
}

func TestMiddleware_ExpiredJWT(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	middleware := auth.NewMiddleware(verifier)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for expired token")
	}))

	token := createTestToken(t, verifier, "user-123", []string{"inspector"}, time.Now().Add(-1*time.Hour))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	middleware := auth.NewMiddleware(auth.NewVerifier(testSecret))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without auth header")
	}))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json response, got %q", ct)
	}
}

func TestMiddleware_InvalidSignature(t *testing.T) {
	signer := auth.NewVerifier("other-secret")
	middleware := auth.NewMiddleware(auth.NewVerifier(testSecret))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for invalid signature")
	}))

	token := createTestToken(t, signer, "user-123", []string{"inspector"}, time.Now().Add(1*time.Hour))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_PublicPathsBypass(t *testing.T) {
	middleware := auth.NewMiddleware(auth.NewVerifier(testSecret))

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("handler should be called for public paths without auth")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMiddleware_NilVerifier_FailClosed(t *testing.T) {
	middleware := auth.NewMiddleware(auth.NewVerifier(""))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called when verifier is nil")
	}))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_MissingSubjectClaim(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	middleware := auth.NewMiddleware(verifier)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for missing subject claim")
	}))

	token := createTestToken(t, verifier, "", []string{"inspector"}, time.Now().Add(1*time.Hour))
	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAdminImpliesAllRoles(t *testing.T) {
	a := &auth.Actor{ID: "root", Roles: []auth.Role{auth.RoleAdmin}}
	for _, role := range []auth.Role{auth.RoleInspector, auth.RoleReviewer, auth.RoleActionOwner} {
		if !a.HasRole(role) {
			t.Errorf("admin should imply %s", role)
		}
	}
}

func TestRequestIDFrom_ExtractsFromContext(t *testing.T) {
	var got string
	handler := auth.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/inspections", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got == "" {
		t.Fatal("expected non-empty request id from context")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}
