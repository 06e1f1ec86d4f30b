package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormat(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewBuildError("build failed", cause)

	assert.Equal(t, "BUILD_FAILED: build failed (exit status 1)", err.Error())
	assert.Equal(t, "build failed: exit status 1", MessageOf(err))
	assert.ErrorIs(t, err, cause)

	plain := NewNotFoundError("deployment abc")
	assert.Equal(t, "NOT_FOUND: deployment abc not found", plain.Error())
	assert.Equal(t, "deployment abc not found", MessageOf(plain))
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("publish step: %w", NewPublishError("push rejected", nil))

	assert.Equal(t, ErrCodePublish, CodeOf(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}

func TestHints(t *testing.T) {
	err := NewToolMissingError("GitHub CLI", nil).
		WithHint("Visit: https://cli.github.com/")

	wrapped := fmt.Errorf("check: %w", err)
	assert.Equal(t, []string{"Visit: https://cli.github.com/"}, HintsOf(wrapped))
	assert.Nil(t, HintsOf(errors.New("x")))
}

func TestInternalError(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewInternalError(cause.Error(), cause)

	assert.Equal(t, ErrCodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeParse, CodeOf(NewParseError("remote URL", "file:///tmp/repo")))
}
