package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeClassification(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", New(CodeOverrideConflict, "toggle claimed twice"))
		assert.True(t, Is(err, CodeOverrideConflict))
		assert.Equal(t, CodeOverrideConflict, CodeOf(err))
		assert.Equal(t, "toggle claimed twice", MessageOf(err))
	})

	t.Run("foreign errors classify as internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
	})

	t.Run("HasCode looks through nested domain errors", func(t *testing.T) {
		inner := New(CodeChallengeExpired, "attempts exhausted")
		outer := Wrap(inner, CodeInternal, "step failed")
		assert.False(t, Is(outer, CodeChallengeExpired))
		assert.True(t, HasCode(outer, CodeChallengeExpired))
		assert.True(t, errors.Is(outer, inner))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:                       http.StatusNotFound,
		CodeChallengeExpired:               http.StatusGone,
		CodeUnauthorized:                   http.StatusUnauthorized,
		CodeInvalidState:                   http.StatusConflict,
		CodeUnsupportedRedirectionStrategy: http.StatusUnprocessableEntity,
		CodeOverrideConflict:               http.StatusInternalServerError,
		CodeBadRequest:                     http.StatusBadRequest,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

func TestIsConfiguration(t *testing.T) {
	assert.True(t, IsConfiguration(CodeOverrideConflict))
	assert.True(t, IsConfiguration(CodeUnsupportedRedirectionStrategy))
	assert.False(t, IsConfiguration(CodeChallengeExpired))
	assert.False(t, IsConfiguration(CodeNotFound))
}
