package apierr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bookwell/scheduling-core/internal/apierr"
)

func TestAsExtractsTypedError(t *testing.T) {
	err := apierr.NotFound("meeting type %q not found", "intro-call")

	apiErr, ok := apierr.As(err)
	assert.True(t, ok)
	assert.Equal(t, apierr.KindNotFound, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "intro-call")
}

func TestAsRejectsPlainError(t *testing.T) {
	_, ok := apierr.As(errors.New("boom"))
	assert.False(t, ok)
}

func TestAsRejectsNil(t *testing.T) {
	_, ok := apierr.As(nil)
	assert.False(t, ok)
}

func TestTransientWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apierr.Transient("failed to load meeting type", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorWithoutCauseOmitsColonChain(t *testing.T) {
	err := apierr.SlotUnavailable("slot already held")
	assert.Equal(t, "SlotUnavailable: slot already held", err.Error())
}
