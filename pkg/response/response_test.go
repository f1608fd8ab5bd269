package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/pkg/apierror"
)

type envelope struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta"`
	Error   struct {
		Code    string                `json:"code"`
		Message string                `json:"message"`
		Details []apierror.FieldError `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestError_UnwrapsAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("confirm session: %w", apierror.ValidationError("money_earned must be positive",
		apierror.FieldError{Field: "money_earned", Message: "must be positive"}))

	Error(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "money_earned", env.Error.Details[0].Field)
}

func TestError_Fallbacks(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("database is locked"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	Error(rec, fmt.Errorf("failed to list cooldowns: %w", context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decode(t, rec).Error.Code)
}

func TestJSONWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONWithMeta(rec, http.StatusOK, []string{"cooldown-vip-work"}, 2, 20, 21)

	env := decode(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, int64(21), env.Meta.Total)
}
