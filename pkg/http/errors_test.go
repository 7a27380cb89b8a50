package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorCarriesStatusAndWrapsCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := BadRequestErrorf("limit must be a positive integer, got %q", "x").WithError(cause)

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "ERR_BAD_REQUEST", err.Code)
	assert.Contains(t, err.Error(), `got "x"`)
	assert.True(t, errors.Is(err, cause))
}

func TestAppErrorResponseSerializesAppErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, ConflictError("broker bridge-a not connected")))

	var resp struct {
		Status int `json:"status"`
		Data   []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_CONFLICT", resp.Data[0].Code)
	assert.Equal(t, "broker bridge-a not connected", resp.Data[0].Message)
}

func TestAppErrorResponseFallsBackToInternalError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, errors.New("boom")))

	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}
