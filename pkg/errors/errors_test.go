package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("TEST", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", err.Error())

	wrapped := err.WithInternal(errors.New("db down"))
	require.Equal(t, "something failed: db down", wrapped.Error())
	// The original must stay untouched.
	require.Nil(t, err.Internal)
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Wrap(inner, "outer")

	require.ErrorIs(t, err, inner)
	require.Equal(t, http.StatusInternalServerError, err.StatusCode)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrConflict)
	require.Same(t, ErrConflict, appErr)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
	// Raw error text is kept internal, never in the client-visible message.
	require.Equal(t, "Internal server error", generic.Message)
	require.EqualError(t, generic.Internal, "boom")
}

func TestSentinelMatchesAfterWithInternal(t *testing.T) {
	wrapped := ErrConflict.WithInternal(errors.New("duplicate key"))

	// WithInternal returns a copy; matching is by code, not identity.
	require.ErrorIs(t, wrapped, ErrConflict)
	require.NotErrorIs(t, wrapped, ErrNotFound)
	require.NotErrorIs(t, wrapped, errors.New("duplicate key value"))
}

func TestFromErrorKeepsAppErrorCode(t *testing.T) {
	inner := ErrNotFound.WithInternal(errors.New("no rows"))
	require.Equal(t, ErrNotFound.Code, FromError(inner).Code)
	require.Equal(t, http.StatusNotFound, FromError(inner).StatusCode)
}
