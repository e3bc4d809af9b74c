package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrLocked, "cohort busy"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "LOCKED", appErr.Code)
	assert.Equal(t, http.StatusLocked, appErr.Status)
	assert.Equal(t, "cohort busy", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed")
	assert.ErrorIs(t, err, cause)
}

func TestCloneAndDetailsDoNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrPreconditionFailed, "no rooms")
	detailed := WithDetails(clone, map[string]string{"kind": "rooms"})

	assert.Equal(t, "precondition failed", ErrPreconditionFailed.Message)
	assert.Nil(t, ErrPreconditionFailed.Details)
	assert.Nil(t, clone.Details)
	assert.Equal(t, map[string]string{"kind": "rooms"}, detailed.Details)
	assert.Nil(t, Clone(nil, "x"))
}

func TestCacheMissIsMatchable(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrCacheMiss)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
