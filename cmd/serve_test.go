package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRouter_Health(t *testing.T) {
	cfg = testConfig()
	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)

	h := buildRouter(env.Service)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_Attribution(t *testing.T) {
	cfg = testConfig()
	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)

	h := buildRouter(env.Service)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/organizations/org-1/attribution?start=2025-03-01&end=2025-03-03", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"organization_id":"org-1"`)

	// max_range_days is 31 in testConfig
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/organizations/org-1/attribution?start=2025-01-01&end=2025-03-03", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNewServer(t *testing.T) {
	cfg = testConfig()
	srv := newServer(9090, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)

	cfg.Server.ReadHeaderTimeoutSecs = 0
	assert.Equal(t, 10*time.Second, newServer(9090, http.NotFoundHandler()).ReadHeaderTimeout)
}

func TestServer_Lifecycle(t *testing.T) {
	cfg = testConfig()
	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)

	srv := httptest.NewServer(buildRouter(env.Service))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
