package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getSettings(t *testing.T, srv *http.Server) SettingsResponse {
	t.Helper()
	rec := doRequest(t, srv, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSettingsDefaults(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getSettings(t, srv)
	assert.Equal(t, 200.0, resp.BufferDistance)
	assert.Equal(t, []float64{200, 500, 1000}, resp.BufferDistances)
	assert.Equal(t, 2030, resp.LastLineYear)
	assert.Equal(t, "satellite", resp.Basemap)
	assert.True(t, resp.ShowBaseLayer)
}

func TestSettingsReflectSessionActivity(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/predict", `{"year":2045}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doRequest(t, srv, http.MethodPost, "/api/assess/buffer", `{"distance":500}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := getSettings(t, srv)
	assert.Equal(t, 2045, resp.LastLineYear)
	assert.Equal(t, 500.0, resp.BufferDistance)
}

func TestSettingsUpdate(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/settings", `{"basemap":"streets","showBaseLayer":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := getSettings(t, srv)
	assert.Equal(t, "streets", resp.Basemap)
	assert.False(t, resp.ShowBaseLayer)

	// Absent fields stay untouched.
	rec = doRequest(t, srv, http.MethodPost, "/api/settings", `{"basemap":"terrain"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = getSettings(t, srv)
	assert.Equal(t, "terrain", resp.Basemap)
	assert.False(t, resp.ShowBaseLayer)
}

func TestSettingsUpdateRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/settings", `{"basemap":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
