package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInsufficientStock, "validation"},
		{Validation("campo %s", "x"), "validation"},
		{fmt.Errorf("approve: %w", ErrInvalidTransition), "conflict"},
		{ErrStaleVersion, "conflict"},
		{ErrTransferNotFound, "not_found"},
		{ErrStockQuarantined, "corruption"},
		{errors.New("conexión rechazada"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Kind(tc.err), "%v", tc.err)
	}
}

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation("cantidad %d", -1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "cantidad -1")
	assert.ErrorIs(t, ErrMissingBatch, ErrValidation)
	assert.ErrorIs(t, ErrDuplicate, ErrConflict)
}
