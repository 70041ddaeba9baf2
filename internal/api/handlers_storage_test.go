package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_PutGetDelete(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(http.MethodPut, "/api/storage/settings", `{"value": {"volume": 3, "sound": "bell"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.request(http.MethodGet, "/api/storage/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "settings", body["key"])
	assert.Equal(t, map[string]interface{}{"volume": 3.0, "sound": "bell"}, body["value"])

	w = ts.request(http.MethodGet, "/api/storage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, []interface{}{"settings"}, list["keys"])
	assert.Equal(t, 1.0, list["size"])
	assert.Equal(t, "tickarr_", list["prefix"])

	w = ts.request(http.MethodDelete, "/api/storage/settings", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.request(http.MethodGet, "/api/storage/settings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.request(http.MethodDelete, "/api/storage/settings", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "removing a missing key is not an error")
}

func TestStorage_PutValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing value", "/api/storage/a", `{}`},
		{"negative ttl", "/api/storage/a", `{"value": 1, "ttl_seconds": -1}`},
		{"ttl overflows duration", "/api/storage/a", `{"value": 1, "ttl_seconds": 10000000000}`},
		{"ttl overflows int64", "/api/storage/a", `{"value": 1, "ttl_seconds": 1e20}`},
		{"malformed", "/api/storage/a", `{"value": `},
		{"key too long", "/api/storage/" + strings.Repeat("k", maxStorageKeyLength+1), `{"value": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.request(http.MethodPut, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestStorage_Expiry(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(http.MethodPut, "/api/storage/session", `{"value": "abc", "ttl_seconds": 60}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPut, "/api/storage/plain", `{"value": 1}`).Code)

	w = ts.request(http.MethodGet, "/api/storage/session?unwrap=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", decode(t, w)["value"])

	w = ts.request(http.MethodGet, "/api/storage/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	wrapped := decode(t, w)["value"].(map[string]interface{})
	assert.Equal(t, "abc", wrapped["value"])
	assert.NotNil(t, wrapped["expiry"])

	w = ts.request(http.MethodGet, "/api/storage/plain?unwrap=true", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.clk.SetNow(ts.clk.Now().Add(61 * time.Second))

	w = ts.request(http.MethodGet, "/api/storage/session?unwrap=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.request(http.MethodGet, "/api/storage", nil)
	assert.Equal(t, []interface{}{"plain"}, decode(t, w)["keys"])
}

func TestStorage_ClearOnlyTouchesPrefix(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Set("mine", 1))
	_, err := ts.repo.DB.Exec(`INSERT INTO kv_store (key, value) VALUES ('other_app', '1')`)
	require.NoError(t, err)

	w := ts.request(http.MethodDelete, "/api/storage", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	size, err := ts.store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	var n int
	require.NoError(t, ts.repo.DB.QueryRow(`SELECT COUNT(*) FROM kv_store WHERE key = 'other_app'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestStorage_ExportImport(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Set("a", map[string]int{"n": 1}))
	require.NoError(t, ts.store.Set("b", "two"))

	w := ts.request(http.MethodGet, "/api/storage/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tickarr_storage.json")
	exported := decode(t, w)
	assert.Equal(t, 2.0, exported["count"])

	other := newTestServer(t)
	require.NoError(t, other.store.Set("b", "local"))

	w = other.request(http.MethodPost, "/api/storage/import", map[string]interface{}{"data": exported["data"]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, 1.0, result["imported"])
	assert.Equal(t, 1.0, result["skipped"])

	var b string
	require.NoError(t, other.store.Get("b", &b))
	assert.Equal(t, "local", b, "existing keys are kept without overwrite")

	w = other.request(http.MethodPost, "/api/storage/import", map[string]interface{}{"data": exported["data"], "overwrite": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["imported"])
	require.NoError(t, other.store.Get("b", &b))
	assert.Equal(t, "two", b)
}

func TestStorage_ImportValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(http.MethodPost, "/api/storage/import", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.request(http.MethodPost, "/api/storage/import", `{"data": {" ": 1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
