package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(method, "/ask", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(w, req)
	return w
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, AllowedOrigins(""))
	assert.Equal(t, []string{"http://localhost:5173", "https://ask.example.com"},
		AllowedOrigins(" http://localhost:5173/, https://ask.example.com "))
}

func TestCORS_ExplicitOriginGetsCredentials(t *testing.T) {
	w := serveCORS([]string{"https://ask.example.com"}, http.MethodGet, "https://ask.example.com")

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "https://ask.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_WildcardOmitsCredentials(t *testing.T) {
	w := serveCORS([]string{"*"}, http.MethodGet, "https://other.example.com")

	assert.Equal(t, "https://other.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	w := serveCORS([]string{"https://ask.example.com"}, http.MethodGet, "https://evil.example.com")

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	w := serveCORS([]string{"*"}, http.MethodOptions, "https://ask.example.com")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}
