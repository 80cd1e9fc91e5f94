package dto

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

func TestErrorFrom(t *testing.T) {
	assert.Equal(t, "VALIDATION", ErrorFrom(domain.ErrInsufficientStock).Code)
	assert.Equal(t, "CONFLICT", ErrorFrom(fmt.Errorf("x: %w", domain.ErrStaleVersion)).Code)
	assert.Equal(t, "NOT_FOUND", ErrorFrom(domain.ErrDrugNotFound).Code)
	assert.Equal(t, "CORRUPTION", ErrorFrom(domain.ErrStockQuarantined).Code)

	corrupt := ErrorFrom(fmt.Errorf("%w: stock s1: #3 afterQty: esperado 40, registrado 75", domain.ErrCorruption))
	assert.Equal(t, "CORRUPTION", corrupt.Code)
	assert.Equal(t, "problema de integridad del sistema, contacte a soporte", corrupt.Message)
	assert.NotContains(t, corrupt.Message, "afterQty")

	internal := ErrorFrom(errors.New("pq: password authentication failed"))
	assert.Equal(t, "INTERNAL", internal.Code)
	assert.NotContains(t, internal.Message, "password")
}

func TestDefaultPage(t *testing.T) {
	p := PageRequest{Offset: -3}
	p.DefaultPage()
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = PageRequest{Limit: 5, Offset: 10}
	p.DefaultPage()
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, 10, p.Offset)
}
