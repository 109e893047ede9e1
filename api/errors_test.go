package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesCodeSentinel(t *testing.T) {
	err := NewError(ErrCodeNotAttached, "detach")
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotAttached)
	assert.Equal(t, ErrCodeNotAttached, CodeOf(wrapped))
}

func TestError_WrapErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrCodeRegistration, "epoll ctl add", cause).WithContext("fd", 7)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "epoll ctl add: boom (context: map[fd:7])", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeOK, CodeOf(nil))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrCodeBlocking, CodeOf(NewError(ErrCodeBlocking, "attach")))
}

func TestPanicError(t *testing.T) {
	err := PanicError("OnWriteResult", "oops")
	assert.Equal(t, ErrCodeCallbackPanic, err.Code)
	assert.Contains(t, err.Error(), "oops")

	cause := errors.New("inner")
	err = PanicError("OnReceivedData", cause)
	assert.ErrorIs(t, err, cause)
}

func TestSourceState_String(t *testing.T) {
	assert.Equal(t, "detached", StateDetached.String())
	assert.Equal(t, "draining", StateDraining.String())
}
