package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clipper/clipper-server/internal/identity"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	configured := map[string]bool{
		"https://clipper.example.com":     true,
		"https://studio.example.com:8443": true,
	}

	allowed := []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost",
		"http://127.0.0.1:3000",
		"http://[::1]:3000",
		"HTTP://LOCALHOST:5173",
		"https://clipper.example.com",
		"https://studio.example.com:8443",
	}
	for _, origin := range allowed {
		if !isAllowedOrigin(origin, configured) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"https://evil.com",
		"https://clipper.example.com.evil.com",
		"https://studio.example.com",
		"http://clipper.example.com",
		"http://192.168.1.1:3000",
		"",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://user@localhost:3000",
		"http://localhost:3000?x=1",
	}
	for _, origin := range denied {
		if isAllowedOrigin(origin, configured) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:12345", true},
		{"[::1]:12345", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"8.8.8.8:12345", false},
		{"192.168.1.1:8080", false},
		{"10.0.0.1:3000", false},
		{"not-an-ip:1234", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := isLoopbackRemoteAddr(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemoteAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestCORSAllowlist_AllowedOrigin(t *testing.T) {
	handler := CORSAllowlist(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:5173")
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want %q", got, "Origin")
	}
}

func TestCORSAllowlist_ConfiguredOrigin(t *testing.T) {
	handler := CORSAllowlist([]string{"https://Clipper.Example.com", "not an origin"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Origin", "https://clipper.example.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://clipper.example.com" {
		t.Errorf("ACAO = %q, want configured origin", got)
	}
}

func TestCORSAllowlist_DeniedOrigin_GET(t *testing.T) {
	called := false
	handler := CORSAllowlist(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if !called {
		t.Error("handler not called for simple request from denied origin")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestCORSAllowlist_DeniedOrigin_Preflight(t *testing.T) {
	handler := CORSAllowlist(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for denied preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/clip", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestCORSAllowlist_NoOrigin(t *testing.T) {
	handler := CORSAllowlist(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Vary"); got != "" {
		t.Errorf("Vary = %q, want empty without Origin", got)
	}
}

func TestCORSAllowlist_AllowedPreflight(t *testing.T) {
	handler := CORSAllowlist(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/download", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "range,authorization")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Max-Age = %q, want 600", got)
	}

	allowHeaders := rr.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"Range", "Content-Type", "Authorization"} {
		if !containsHeader(allowHeaders, h) {
			t.Errorf("Access-Control-Allow-Headers missing %q, got %q", h, allowHeaders)
		}
	}

	exposeHeaders := rr.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Content-Disposition", "Content-Length", "Content-Type"} {
		if !containsHeader(exposeHeaders, h) {
			t.Errorf("Access-Control-Expose-Headers missing %q, got %q", h, exposeHeaders)
		}
	}

	allowMethods := rr.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"} {
		if !containsHeader(allowMethods, m) {
			t.Errorf("Access-Control-Allow-Methods missing %q, got %q", m, allowMethods)
		}
	}
}

func containsHeader(headerVal, target string) bool {
	for _, part := range strings.Split(headerVal, ",") {
		if strings.TrimSpace(part) == target {
			return true
		}
	}
	return false
}

func TestCORSAllowlist_VaryIsAdditive(t *testing.T) {
	handler := CORSAllowlist(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	handler.ServeHTTP(rr, req)

	vary := rr.Header().Values("Vary")
	hasEncoding := false
	hasOrigin := false
	for _, v := range vary {
		if v == "Accept-Encoding" {
			hasEncoding = true
		}
		if v == "Origin" {
			hasOrigin = true
		}
	}
	if !hasEncoding {
		t.Errorf("Vary lost Accept-Encoding, got %v", vary)
	}
	if !hasOrigin {
		t.Errorf("Vary missing Origin, got %v", vary)
	}
}

func TestLoopbackGuard(t *testing.T) {
	cases := []struct {
		addr string
		want int
	}{
		{"127.0.0.1:12345", http.StatusOK},
		{"[::1]:12345", http.StatusOK},
		{"8.8.8.8:12345", http.StatusForbidden},
		{"192.168.1.10:80", http.StatusForbidden},
	}

	handler := LoopbackGuard()(okHandler())
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/download?file=a.mp4", nil)
		req.RemoteAddr = tc.addr
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != tc.want {
			t.Errorf("RemoteAddr %q: status = %d, want %d", tc.addr, rr.Code, tc.want)
		}
	}
}

func TestSessionMiddleware(t *testing.T) {
	verifier := identity.NewVerifier(testSecret, "clipper")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var gotUser string
	handler := SessionMiddleware(verifier, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = identity.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid, err := verifier.Issue("user_1", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	expired, err := verifier.Issue("user_1", -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	otherIssuer, err := identity.NewVerifier(testSecret, "someone-else").Issue("user_1", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantUser string
	}{
		{"anonymous", func(r *http.Request) {}, http.StatusOK, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK, "user_1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookie, Value: valid}) }, http.StatusOK, "user_1"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized, ""},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, ""},
		{"wrong issuer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+otherIssuer) }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

func TestSessionMiddleware_DisabledVerifierIsAnonymous(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := SessionMiddleware(identity.NewVerifier("", ""), logger)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser()(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/users/sync", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/users/sync", nil)
	req = req.WithContext(identity.WithUser(req.Context(), "user_1"))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("signed-in status = %d, want 200", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 8 {
		t.Errorf("request id = %q, want 8 characters", seen)
	}
	if got := rr.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("X-Request-ID = %q, want %q", got, seen)
	}
}

func TestHealthRoute_CORS_Integration(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://clipper.example.com")
	rr := httptest.NewRecorder()

	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://clipper.example.com" {
		t.Errorf("ACAO = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}
