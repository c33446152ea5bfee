package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithVars(vars map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	return mux.SetURLVars(r, vars)
}

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"name":"foreman"}`)))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "foreman", dest.Name)

	r = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{broken`)))
	assert.Error(t, ParseJSON(r, &dest))
}

func TestParseJSONOrError(t *testing.T) {
	var dest map[string]interface{}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{broken`)))
	assert.False(t, ParseJSONOrError(rec, r, &dest))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePathInt64(t *testing.T) {
	val, err := ParsePathInt64(requestWithVars(map[string]string{"id": "42"}), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)

	_, err = ParsePathInt64(requestWithVars(nil), "id")
	assert.Error(t, err)

	_, err = ParsePathInt64(requestWithVars(map[string]string{"id": "abc"}), "id")
	assert.Error(t, err)
}

func TestParsePathInt64OrError(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := ParsePathInt64OrError(rec, requestWithVars(map[string]string{"id": "abc"}), "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePathString(t *testing.T) {
	val, err := ParsePathString(requestWithVars(map[string]string{"module": "payments"}), "module")
	require.NoError(t, err)
	assert.Equal(t, "payments", val)

	_, err = ParsePathString(requestWithVars(nil), "module")
	assert.Error(t, err)
}

func TestParseQueryInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=50", nil)
	val, err := ParseQueryInt64(r, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), val)

	val, err = ParseQueryInt64(r, "offset", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), val)

	r = httptest.NewRequest(http.MethodGet, "/?limit=many", nil)
	_, err = ParseQueryInt64(r, "limit", 100)
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?status=denied", nil)
	assert.Equal(t, "denied", ParseQueryString(r, "status", "all"))
	assert.Equal(t, "all", ParseQueryString(r, "missing", "all"))
}

func TestParseQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?active=true", nil)
	val, err := ParseQueryBool(r, "active", false)
	require.NoError(t, err)
	assert.True(t, val)

	val, err = ParseQueryBool(r, "missing", true)
	require.NoError(t, err)
	assert.True(t, val)

	r = httptest.NewRequest(http.MethodGet, "/?active=maybe", nil)
	_, err = ParseQueryBool(r, "active", false)
	assert.Error(t, err)
}

func TestRequireNonEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(rec, "value", "slug"))

	rec = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(rec, "", "slug"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "slug is required")
}

func TestRequirePositive(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, RequirePositive(rec, 1, "user_id"))

	rec = httptest.NewRecorder()
	assert.False(t, RequirePositive(rec, 0, "user_id"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	assert.False(t, RequirePositive(rec, -3, "user_id"))
}
