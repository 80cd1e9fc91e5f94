package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Drug entrada del catálogo maestro de medicamentos. Solo lectura para este núcleo;
// UnitPrice se copia en ítems y movimientos al momento de escribir.
type Drug struct {
	ID         string
	Code       string
	Name       string
	DosageForm string
	UnitPrice  decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
