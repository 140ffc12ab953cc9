package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeConfiguration: http.StatusInternalServerError,
		CodeValidation:    http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeUpstream:      http.StatusInternalServerError,
		CodeNotFound:      http.StatusNotFound,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}

func TestSentinelMatchesAfterWrapping(t *testing.T) {
	sentinel := Validation("Invalid OIDC state.")
	err := fmt.Errorf("callback: %w", sentinel.WithCause(errors.New("mismatch")))

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Equal(t, "Invalid OIDC state.", PublicMessage(err, "x"))
}

func TestPublicMessageHidesInternal(t *testing.T) {
	assert.Equal(t, "fallback", PublicMessage(errors.New("dial tcp: refused"), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(Internal("store down", nil), "fallback"))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x")))
}
