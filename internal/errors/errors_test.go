package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesCode(t *testing.T) {
	err := errors.New().New(errors.ErrAlertNotFound)
	assert.Equal(t, "Alert not found (alert_not_found)", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.New().Wrap(errors.ErrExport, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSentinelMatchesWrappedInstance(t *testing.T) {
	sentinel := errors.New().New(errors.ErrAlertNotFound)
	err := fmt.Errorf("ack: %w", errors.New().WithData(errors.ErrAlertNotFound, "abc"))

	assert.ErrorIs(t, err, sentinel)
	assert.True(t, errors.HasCode(err, errors.ErrAlertNotFound))
	assert.False(t, errors.HasCode(err, errors.ErrExport))

	code, ok := errors.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrAlertNotFound, code)
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	assert.Equal(t, "custom_code", errors.GetErrorMessage(errors.ErrorCode("custom_code")))
}
