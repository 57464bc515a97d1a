package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agripos/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("expected DELETE in allowed methods, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestMutatingRequestsRequireCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)

	// POST without a CSRF token is refused before the handler runs.
	rec := do(t, handler, http.MethodPost, "/api/v1/categories", token, "", map[string]string{"name": "Tools"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}

	// DELETE is state-changing too.
	rec = do(t, handler, http.MethodDelete, "/api/v1/products/prod-x", token, "", map[string]string{"pin": "1234"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for DELETE without csrf token, got %d", rec.Code)
	}

	// A garbage token is refused as well.
	rec = do(t, handler, http.MethodPost, "/api/v1/categories", token, "not-a-real-token", map[string]string{"name": "Tools"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bogus csrf token, got %d", rec.Code)
	}
}

// Wrong PIN attempts are deliberately not rate limited: the gate re-prompts
// without lockout however many times the operator mistypes.
func TestWrongPINAttemptsAreNotRateLimited(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler)
	csrf := csrfToken(t, handler)
	product := firstProduct(t, handler, token)

	rec := do(t, handler, http.MethodPut, "/api/v1/admin/pin", token, csrf, map[string]string{"pin": "9876"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set pin failed: %d", rec.Code)
	}

	for i := 0; i < 20; i++ {
		rec := do(t, handler, http.MethodDelete, "/api/v1/products/"+product.ID, token, csrf, map[string]string{"pin": "0000"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("attempt %d: expected 403, got %d", i+1, rec.Code)
		}
	}
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	token := api.generateCSRFToken()
	if !api.validateCSRFToken(token) {
		t.Fatalf("expected freshly generated token to validate")
	}
	if api.validateCSRFToken("") {
		t.Fatalf("expected empty token to be rejected")
	}
	if api.validateCSRFToken("deadbeef") {
		t.Fatalf("expected forged token to be rejected")
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}
