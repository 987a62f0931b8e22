package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindsAndSentinels(t *testing.T) {
	err := FailedPrecondition("fee not frozen")
	assert.True(t, errors.Is(err, ErrFailedPrecondition))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindFailedPrecondition, KindOf(err))
	assert.Equal(t, "fee not frozen", Message(err))

	wrapped := fmt.Errorf("open collection: %w", NotFound("target %s not found", "x"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestFromStore(t *testing.T) {
	assert.Nil(t, FromStore(nil, "target"))

	err := FromStore(gorm.ErrRecordNotFound, "target")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "target not found", Message(err))

	typed := Conflict("dup")
	assert.Same(t, typed, FromStore(typed, "target"))

	err = FromStore(context.DeadlineExceeded, "target")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal error", Message(errors.New("boom")))
}
