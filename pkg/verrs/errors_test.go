package verrs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIs(t *testing.T) {
	base := New(CodeNotFound, "agent not found")
	wrapped := Wrap(base, CodeTransport, "lookup failed")

	assert.True(t, Is(wrapped, CodeTransport))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeSensor))
	assert.False(t, Is(errors.New("plain"), CodeTransport))
	assert.False(t, Is(nil, CodeTransport))
}

func TestWrapNil(t *testing.T) {
	require.Nil(t, Wrap(nil, CodeTransport, "ignored"))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "agent not found", UserMessage(New(CodeNotFound, "agent not found")))

	// Outermost message wins.
	inner := New(CodeTransport, "gateway said no")
	outer := Wrap(inner, CodeInternal, "confirm failed")
	assert.Equal(t, "confirm failed", UserMessage(outer))

	// Uncoded errors get the generic fallback.
	assert.Contains(t, UserMessage(errors.New("boom")), "try again")
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(fmt.Errorf("post: %w", cause), CodeTransport, "upload failed")
	assert.True(t, errors.Is(err, cause))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeInput))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(CodeTransport))
	assert.Equal(t, http.StatusFailedDependency, ToHTTPStatus(CodeSensor))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("unknown")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeSensor, CodeOf(New(CodeSensor, "camera unavailable")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
