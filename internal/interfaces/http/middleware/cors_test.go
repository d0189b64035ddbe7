package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string, hdr map[string]string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "body")
	}))

	req := httptest.NewRequest(method, "/api/v1/catalog", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_Origins(t *testing.T) {
	lab := []string{"https://lab.materials.test"}
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"exact match", lab, "https://lab.materials.test", "https://lab.materials.test"},
		{"foreign origin", lab, "https://other.test", ""},
		{"wildcard subdomain", []string{"https://*.materials.test"}, "https://qa.materials.test", "https://qa.materials.test"},
		{"nothing configured", nil, "https://lab.materials.test", ""},
		{"no origin header", lab, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.allowed, http.MethodGet, tt.origin, nil)
			assert.Equal(t, "body", rec.Body.String(), "simple requests always reach the handler")
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_PreflightIsAnsweredByMiddleware(t *testing.T) {
	rec := serveCORS([]string{"https://lab.materials.test"}, http.MethodOptions, "https://lab.materials.test", map[string]string{
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})

	assert.Less(t, rec.Code, 300)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_ExposesExportLocation(t *testing.T) {
	rec := serveCORS([]string{"*"}, http.MethodGet, "https://lab.materials.test", nil)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Export-Url")
}
