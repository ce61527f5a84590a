package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasScope(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   bool
	}{
		{"exact", []string{"load_runs:read"}, true},
		{"resource wildcard", []string{"load_runs:*"}, true},
		{"global wildcard", []string{"*:*"}, true},
		{"other action", []string{"load_runs:write"}, false},
		{"other resource", []string{"clusters:read"}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasScope(&APIKeyIdentity{ID: "k", Scopes: tt.scopes}, "load_runs", "read"))
		})
	}

	assert.False(t, HasScope(nil, "load_runs", "read"))
}

func TestRequireScope(t *testing.T) {
	h := RequireScope("load_runs", "write")(okHandler(nil))

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/load-runs", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("read-only key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/load-runs", nil)
		req = req.WithContext(context.WithValue(req.Context(), APIKeyIdentityKey,
			&APIKeyIdentity{ID: "k", Scopes: []string{"load_runs:read"}}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient scope: requires load_runs:write", errorBody(t, rec))
	})

	t.Run("write key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/load-runs", nil)
		req = req.WithContext(context.WithValue(req.Context(), APIKeyIdentityKey,
			&APIKeyIdentity{ID: "k", Scopes: []string{"load_runs:write"}}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
