package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	write(c)

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := record(t, func(c *gin.Context) { Success(c, gin.H{"n": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Zero(t, body.Code)
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, body.Data)
}

func TestResult_Denial(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Result(c, http.StatusTooManyRequests, false, "too_many_attempts", "slow down", nil)
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "too_many_attempts", body.Reason)
	assert.Nil(t, body.Data)
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		write  func(c *gin.Context)
		status int
		reason string
	}{
		{func(c *gin.Context) { BadRequest(c, "bad") }, http.StatusBadRequest, ReasonInvalidRequest},
		{func(c *gin.Context) { Unauthorized(c, "who") }, http.StatusUnauthorized, ReasonUnauthorized},
		{func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, ReasonForbidden},
		{func(c *gin.Context) { InternalError(c, "oops") }, http.StatusInternalServerError, ReasonInternal},
	}
	for _, tc := range cases {
		w, body := record(t, tc.write)
		assert.Equal(t, tc.status, w.Code)
		assert.False(t, body.Success)
		assert.Equal(t, tc.reason, body.Reason)
	}
}
