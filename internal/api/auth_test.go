package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/ashureev/askd/internal/identity"
)

func (s *testServer) login(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/login", map[string]string{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected login 200, got %d: %s", w.Code, w.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected session cookie on login")
	}
	return decode(t, w)["session_id"].(string), cookie
}

func TestLoginAskClearLogoutFlow(t *testing.T) {
	s := newTestServer(t, Options{})
	s.model.answers = []string{"A1", "A2", "A3"}

	w := s.do(t, http.MethodPost, "/register", map[string]string{"username": "alice", "password": "pw1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	sid, _ := s.login(t, "alice", "pw1")

	got := decode(t, s.do(t, http.MethodPost, "/ask", map[string]string{"question": "Q1", "session_id": sid}))
	if got["authenticated"] != true || got["username"] != "alice" {
		t.Fatalf("Expected authenticated alice, got %v", got)
	}
	history := got["history"].([]any)
	if len(history) != 1 || history[0].(map[string]any)["user"] != "alice" {
		t.Fatalf("Expected one turn by alice, got %v", history)
	}

	got = decode(t, s.do(t, http.MethodPost, "/ask", map[string]string{"question": "Q2", "session_id": sid}))
	if n := len(got["history"].([]any)); n != 2 {
		t.Fatalf("Expected 2 turns, got %d", n)
	}
	wantPrompt := "Previous conversation:\nHuman: Q1\nAI: A1\n\nHuman: Q2"
	if q := s.model.lastCall().question; q != wantPrompt {
		t.Errorf("Expected prompt %q, got %q", wantPrompt, q)
	}

	s.do(t, http.MethodPost, "/clear-history", map[string]string{"session_id": sid})
	got = decode(t, s.do(t, http.MethodGet, "/history?session_id="+sid, nil))
	if got["count"] != float64(0) {
		t.Errorf("Expected empty history after clear, got %v", got["count"])
	}

	if w := s.do(t, http.MethodPost, "/logout", map[string]string{"session_id": sid}); w.Code != http.StatusOK {
		t.Fatalf("Expected logout 200, got %d", w.Code)
	}

	got = decode(t, s.do(t, http.MethodPost, "/ask", map[string]string{"question": "Q3", "session_id": sid}))
	if got["authenticated"] != false || got["username"] != nil {
		t.Errorf("Expected anonymous after logout, got %v", got)
	}
}

func TestCookieCarriesSessionUntilLogout(t *testing.T) {
	s := newTestServer(t, Options{})
	sid, cookie := s.login(t, identity.AdminUsername, "admin123")

	got := decode(t, s.do(t, http.MethodPost, "/ask", map[string]string{"question": "hi"}, cookie))
	if got["session_id"] != sid || got["authenticated"] != true {
		t.Fatalf("Expected cookie session %s to be authenticated, got %v", sid, got)
	}

	w := s.do(t, http.MethodPost, "/logout", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected logout 200, got %d", w.Code)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected logout to clear the session cookie")
	}

	// A retained cookie for a revoked session stays anonymous.
	got = decode(t, s.do(t, http.MethodPost, "/ask", map[string]string{"question": "again"}, cookie))
	if got["authenticated"] != false {
		t.Errorf("Expected revoked cookie session to be anonymous, got %v", got)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, Options{})
	s.do(t, http.MethodPost, "/register", map[string]string{"username": "alice", "password": "pw1"})

	wrong := s.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "nope"})
	unknown := s.do(t, http.MethodPost, "/login", map[string]string{"username": "mallory", "password": "pw1"})

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for both, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("Expected identical bodies, got %q and %q", wrong.Body.String(), unknown.Body.String())
	}
	if !strings.Contains(wrong.Body.String(), "Invalid username or password") {
		t.Errorf("Unexpected body: %s", wrong.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing password", map[string]string{"username": "bob"}, "Username and password are required"},
		{"duplicate admin", map[string]string{"username": identity.AdminUsername, "password": "x"}, "Username already exists"},
		{"too long", map[string]string{"username": "bob", "password": strings.Repeat("x", 80)}, "Password is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/register", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", w.Code)
			}
			if msg := decode(t, w)["error"]; msg != tt.want {
				t.Errorf("Expected %q, got %v", tt.want, msg)
			}
		})
	}
}

func TestLogoutWithoutLogin(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, body := range []any{nil, map[string]string{"session_id": "not-a-session"}} {
		w := s.do(t, http.MethodPost, "/logout", body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for %v, got %d", body, w.Code)
		}
	}
}
