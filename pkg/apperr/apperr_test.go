package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeNotFound, "room not found")
	require.Equal(t, CodeNotFound, CodeOf(err))

	// Code survives wrapping by callers up the stack.
	wrapped := fmt.Errorf("handling join: %w", err)
	require.Equal(t, CodeNotFound, CodeOf(wrapped))

	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	require.Equal(t, CodeInternal, CodeOf(nil))
}

func TestIs(t *testing.T) {
	err := Newf(CodeAlreadyRecording, "participant %s is already being recorded", "u1")
	require.True(t, Is(err, CodeAlreadyRecording))
	require.False(t, Is(err, CodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeUpstream, "media server unreachable", cause)
	require.Equal(t, CodeUpstream, CodeOf(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}

func TestMessageOf(t *testing.T) {
	require.Equal(t, "room not found", MessageOf(New(CodeNotFound, "room not found")))
	// Unclassified errors never leak internals to callers.
	require.Equal(t, "internal error", MessageOf(errors.New("pq: syntax error at line 3")))
}
