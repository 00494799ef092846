package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		keys    []string
		headers map[string]string
		want    int
	}{
		{"disabled", nil, nil, http.StatusOK},
		{"blank keys disable", []string{" ", ""}, nil, http.StatusOK},
		{"missing", []string{"k1"}, nil, http.StatusUnauthorized},
		{"header ok", []string{"k1"}, map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"second key ok", []string{"k1", "k2"}, map[string]string{"X-API-Key": "k2"}, http.StatusOK},
		{"bearer ok", []string{"k1"}, map[string]string{"Authorization": "Bearer k1"}, http.StatusOK},
		{"bearer lowercase", []string{"k1"}, map[string]string{"Authorization": "bearer k1"}, http.StatusOK},
		{"wrong", []string{"k1"}, map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"basic ignored", []string{"k1"}, map[string]string{"Authorization": "Basic azE6"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(APIKeyMiddleware(tt.keys))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
