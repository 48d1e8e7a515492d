package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, method string, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())

	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	handler(err, e.NewContext(req, rec))

	if rec.Body.Len() == 0 {
		return rec, nil
	}
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	return rec, errObj
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	rec, errObj := serveError(t, http.MethodGet, NewBadRequest("invalid cursor"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errObj["code"])
	assert.Equal(t, "invalid cursor", errObj["message"])
}

func TestHTTPErrorHandler_WrappedUnknownFault(t *testing.T) {
	err := fmt.Errorf("create relation: %w", NewUnknown(errors.New("tx aborted by engine")))
	rec, errObj := serveError(t, http.MethodPost, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unknown", errObj["code"])
	assert.NotContains(t, errObj["message"], "tx aborted")
}

func TestHTTPErrorHandler_Details(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]any{"field": "first"})
	rec, errObj := serveError(t, http.MethodGet, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]any{"field": "first"}, errObj["details"])
}

func TestHTTPErrorHandler_EchoError_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusNotFound, "not_found"},
		{http.StatusBadRequest, "bad_request"},
		{http.StatusConflict, "conflict"},
		{http.StatusUnprocessableEntity, "validation_error"},
		{http.StatusServiceUnavailable, "unavailable"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec, errObj := serveError(t, http.MethodGet, echo.NewHTTPError(tt.status, "test message"))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCode, errObj["code"])
			assert.Equal(t, "test message", errObj["message"])
		})
	}
}

func TestHTTPErrorHandler_StructuredMessage(t *testing.T) {
	msg := map[string]any{
		"error": map[string]any{
			"code":    "invalid_order",
			"message": "order_mode must be asc or desc",
		},
	}
	rec, errObj := serveError(t, http.MethodGet, echo.NewHTTPError(http.StatusBadRequest, msg))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_order", errObj["code"])
	assert.Equal(t, "order_mode must be asc or desc", errObj["message"])
}

func TestHTTPErrorHandler_PlainError(t *testing.T) {
	rec, errObj := serveError(t, http.MethodGet, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errObj["code"])
}

func TestHTTPErrorHandler_HeadRequest(t *testing.T) {
	rec, errObj := serveError(t, http.MethodHead, NewNotFound("entity", "V123"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, errObj)
	assert.Zero(t, rec.Body.Len())
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	handler := HTTPErrorHandler(slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	c.Response().WriteHeader(http.StatusOK)
	_, _ = c.Response().Write([]byte("already written"))

	handler(NewBadRequest("should not appear"), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already written", rec.Body.String())
}
