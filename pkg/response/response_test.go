package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/multispeaker/backend/pkg/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Code]int{
		apperr.CodeNotFound:         http.StatusNotFound,
		apperr.CodeArtifactNotFound: http.StatusNotFound,
		apperr.CodeInvalidReference: http.StatusBadRequest,
		apperr.CodeAlreadyRecording: http.StatusConflict,
		apperr.CodeInvalidState:     http.StatusConflict,
		apperr.CodeAccessDenied:     http.StatusForbidden,
		apperr.CodeTokenIssuance:    http.StatusBadGateway,
		apperr.CodeUpstream:         http.StatusBadGateway,
		apperr.CodeInternal:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, StatusFor(code), "code %s", code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperr.New(apperr.CodeAccessDenied, "caller does not own or belong to this room"))

	require.Equal(t, http.StatusForbidden, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, string(apperr.CodeAccessDenied), body.Code)
	require.Equal(t, "caller does not own or belong to this room", body.Error)
}

func TestErrorHidesUnclassifiedDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errDB)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "internal error", body.Error)
}

var errDB = &dbError{}

type dbError struct{}

func (*dbError) Error() string { return "pq: relation recordings does not exist" }
