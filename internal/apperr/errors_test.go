package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(KindNotFound, "invoice %s not found", "abc")

	assert.Equal(t, "not_found: invoice abc not found", err.Error())
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Nil(t, errors.Unwrap(err))
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStorage, cause, "failed to create invoice")

	assert.Equal(t, "storage: failed to create invoice: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed error", New(KindConflict, "taken"), KindConflict},
		{"wrapped deeper", fmt.Errorf("handler: %w", New(KindValidation, "bad id")), KindValidation},
		{"plain error defaults to storage", errors.New("anything"), KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsKind(t *testing.T) {
	err := New(KindInvalidTransition, "cannot approve")

	assert.True(t, IsKind(err, KindInvalidTransition))
	assert.False(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(nil, KindStorage))
}
