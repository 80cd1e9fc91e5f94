package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
// Las cuatro clases base forman la taxonomía que ve el llamador; los errores específicos
// las envuelven para poder clasificarlos con errors.Is.
var (
	ErrValidation = errors.New("entrada inválida")
	ErrConflict   = errors.New("conflicto con el estado actual")
	ErrNotFound   = errors.New("recurso no encontrado")
	ErrCorruption = errors.New("inconsistencia entre ledger y stock")
)

var (
	ErrInsufficientStock  = fmt.Errorf("%w: stock disponible insuficiente", ErrValidation)
	ErrMissingActor       = fmt.Errorf("%w: actor requerido", ErrValidation)
	ErrMissingBatch       = fmt.Errorf("%w: lote y fecha de vencimiento requeridos", ErrValidation)
	ErrQuantityChain      = fmt.Errorf("%w: cantidad excede la etapa anterior", ErrValidation)
	ErrInvalidTransition  = fmt.Errorf("%w: transición no permitida desde el estado actual", ErrConflict)
	ErrStaleVersion       = fmt.Errorf("%w: la versión cambió durante la escritura", ErrConflict)
	ErrDuplicate          = fmt.Errorf("%w: recurso duplicado", ErrConflict)
	ErrStockQuarantined   = fmt.Errorf("%w: stock en cuarentena", ErrCorruption)
	ErrTransferNotFound   = fmt.Errorf("%w: traslado", ErrNotFound)
	ErrStockNotFound      = fmt.Errorf("%w: stock", ErrNotFound)
	ErrDrugNotFound       = fmt.Errorf("%w: medicamento", ErrNotFound)
	ErrTransferItemAbsent = fmt.Errorf("%w: ítem de traslado", ErrNotFound)
)

// Validation construye un error de validación con detalle.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind devuelve la clase del error para logs y métricas.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCorruption):
		return "corruption"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
