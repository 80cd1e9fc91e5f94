package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWithPage(t *testing.T) {
	args := []any{"PHARMACY"}
	q := withPage("SELECT 1 FROM stock WHERE department = $1", &args, 20, 40)
	assert.Equal(t, "SELECT 1 FROM stock WHERE department = $1 LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{"PHARMACY", 20, 40}, args)

	args = nil
	assert.Equal(t, "SELECT 1", withPage("SELECT 1", &args, 0, 0))
	assert.Empty(t, args)
}

func TestErrorClassification(t *testing.T) {
	serialization := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	deadlock := &pgconn.PgError{Code: "40P01"}
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})

	assert.True(t, isRetryable(serialization))
	assert.True(t, isRetryable(deadlock))
	assert.False(t, isRetryable(unique))
	assert.False(t, isRetryable(errors.New("40001")))

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(serialization))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "x", *nullIfEmpty("x"))
	assert.Equal(t, "", derefStr(nil))
	assert.Equal(t, "y", derefStr(nullIfEmpty("y")))
}
