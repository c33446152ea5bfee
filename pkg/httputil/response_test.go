package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusOK, map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadGateway, errors.New("upstream broke"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream broke", decodeBody(t, rec)["error"])
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "x") }, http.StatusBadRequest},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "x") }, http.StatusUnauthorized},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "x") }, http.StatusForbidden},
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "x") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "x") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, errors.New("x")) }, http.StatusInternalServerError},
		{"unavailable", func(w http.ResponseWriter) { WriteServiceUnavailable(w, "x") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "x", decodeBody(t, rec)["error"])
		})
	}
}

func TestWriteCreatedAndSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteCreated(rec, map[string]int{"id": 5}))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]int{"id": 5}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWriteJSONOrError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOrError(rec, http.StatusOK, map[string]string{"a": "b"}, "encode")
	assert.Equal(t, http.StatusOK, rec.Code)
}
