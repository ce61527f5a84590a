package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"

	mw "github.com/edvin/warehouse/internal/api/middleware"
	"github.com/edvin/warehouse/internal/core"
)

type mockCoreDB struct {
	mock.Mock
}

func (m *mockCoreDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockCoreDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockCoreDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

func (m *mockCoreDB) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer()
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s, db, tc := newTestServer()
		db.On("Ping", mock.Anything).Return(nil)
		tc.On("CheckHealth", mock.Anything, &temporalclient.CheckHealthRequest{}).
			Return(&temporalclient.CheckHealthResponse{}, nil)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"core_db":"ok","temporal":"ok"}`, rec.Body.String())
	})

	t.Run("db down", func(t *testing.T) {
		s, db, tc := newTestServer()
		db.On("Ping", mock.Anything).Return(errors.New("connection refused"))
		tc.On("CheckHealth", mock.Anything, mock.Anything).
			Return(&temporalclient.CheckHealthResponse{}, nil)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var checks map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
		assert.Equal(t, "connection refused", checks["core_db"])
		assert.Equal(t, "ok", checks["temporal"])
	})

	t.Run("temporal down", func(t *testing.T) {
		s, db, tc := newTestServer()
		db.On("Ping", mock.Anything).Return(nil)
		tc.On("CheckHealth", mock.Anything, mock.Anything).
			Return((*temporalclient.CheckHealthResponse)(nil), errors.New("frontend unreachable"))

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var checks map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
		assert.Equal(t, "ok", checks["core_db"])
		assert.Equal(t, "frontend unreachable", checks["temporal"])
	})
}

const testAPIKey = "whk_test"

func newTestServer() (*Server, *mockCoreDB, *temporalmocks.Client) {
	db := &mockCoreDB{}
	tc := &temporalmocks.Client{}
	return NewServer(zerolog.Nop(), db, tc, core.WaitOptions{}), db, tc
}

// expectAPIKey makes testAPIKey resolve to an identity with the given scopes.
func expectAPIKey(db *mockCoreDB, scopes ...string) {
	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "FROM api_keys")
	}), []any{mw.HashKey(testAPIKey)}).Return(keyRow{id: "key-1", scopes: scopes})
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO audit_logs")
	}), mock.Anything).Return(pgconn.CommandTag{}, nil).Maybe()
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func TestRoutes(t *testing.T) {
	s, db, tc := newTestServer()
	defer s.Close()
	expectAPIKey(db, "*:*")
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"run-1"}).
		Return(pgxErrRow{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/load-runs/run-1", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/load-runs", strings.NewReader(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/load-runs/run-1", nil)))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestLoadRuns_RequireAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create", http.MethodPost, "/load-runs", `{"cluster_identifier":"test-cluster","bucket":"b","local_path":"exports/sales.csv"}`},
		{"list", http.MethodGet, "/load-runs", ""},
		{"get", http.MethodGet, "/load-runs/run-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db, tc := newTestServer()
			defer s.Close()

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"missing API key"}`, rec.Body.String())
			db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
			tc.AssertNotCalled(t, "ExecuteWorkflow")
		})
	}
}

func TestLoadRuns_UnknownAPIKey(t *testing.T) {
	s, db, tc := newTestServer()
	defer s.Close()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{mw.HashKey("whk_revoked")}).
		Return(pgxErrRow{})

	req := httptest.NewRequest(http.MethodPost, "/load-runs",
		strings.NewReader(`{"cluster_identifier":"test-cluster","bucket":"b","local_path":"exports/sales.csv"}`))
	req.Header.Set("X-API-Key", "whk_revoked")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid API key"}`, rec.Body.String())
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestLoadRuns_ReadOnlyKeyCannotCreate(t *testing.T) {
	s, db, tc := newTestServer()
	defer s.Close()
	expectAPIKey(db, "load_runs:read")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/load-runs",
		strings.NewReader(`{"cluster_identifier":"test-cluster","bucket":"b","local_path":"exports/sales.csv"}`))))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	tc.AssertNotCalled(t, "ExecuteWorkflow")
}

func TestLoadRuns_RejectsPathOutsideArtifactRoot(t *testing.T) {
	for _, path := range []string{"/etc/shadow", "../../etc/shadow", "exports/../../etc/shadow"} {
		t.Run(path, func(t *testing.T) {
			s, db, tc := newTestServer()
			defer s.Close()
			expectAPIKey(db, "load_runs:write")

			body, err := json.Marshal(map[string]string{
				"cluster_identifier": "victim",
				"bucket":             "attacker-bucket",
				"local_path":         path,
			})
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/load-runs", bytes.NewReader(body))))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "LocalPath")
			db.AssertNotCalled(t, "Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
				return strings.Contains(sql, "load_runs")
			}), mock.Anything)
			tc.AssertNotCalled(t, "ExecuteWorkflow")
		})
	}
}

type keyRow struct {
	id     string
	scopes []string
}

func (r keyRow) Scan(dest ...any) error {
	*dest[0].(*string) = r.id
	*dest[1].(*[]string) = r.scopes
	return nil
}

type pgxErrRow struct{}

func (pgxErrRow) Scan(...any) error { return pgx.ErrNoRows }
