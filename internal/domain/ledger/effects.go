// Package ledger contiene la tabla de efectos de los movimientos de stock y la lógica
// pura para aplicarlos y reproducirlos. Todo comportamiento por tipo de movimiento
// se deriva de Effects.
package ledger

import (
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// Target campo del stock afectado por un tipo de movimiento.
type Target int

const (
	TargetNone Target = iota
	TargetQuantity
	TargetReserved
	TargetMinimum
)

// Sign convención de signo del delta.
type Sign int

const (
	SignNone Sign = iota
	SignPositive
	SignNegative
	SignAny
)

// Effect efecto de un tipo de movimiento sobre el stock.
type Effect struct {
	Target Target
	Sign   Sign
}

// Effects tabla autoritativa de efectos por tipo.
var Effects = map[entity.TransactionType]Effect{
	entity.TxReceiveExternal:  {TargetQuantity, SignPositive},
	entity.TxDispenseExternal: {TargetQuantity, SignNegative},
	entity.TxTransferIn:       {TargetQuantity, SignPositive},
	entity.TxTransferOut:      {TargetQuantity, SignNegative},
	entity.TxAdjustIncrease:   {TargetQuantity, SignPositive},
	entity.TxAdjustDecrease:   {TargetQuantity, SignNegative},
	entity.TxReserve:          {TargetReserved, SignPositive},
	entity.TxUnreserve:        {TargetReserved, SignNegative},
	entity.TxMinStockIncrease: {TargetMinimum, SignPositive},
	entity.TxMinStockDecrease: {TargetMinimum, SignNegative},
	entity.TxMinStockReset:    {TargetMinimum, SignAny},
	entity.TxDataUpdate:       {TargetNone, SignNone},
	entity.TxPriceUpdate:      {TargetNone, SignNone},
	entity.TxInfoCorrection:   {TargetNone, SignNone},
}

// EffectOf devuelve el efecto del tipo; ok=false si el tipo no pertenece al conjunto cerrado.
func EffectOf(t entity.TransactionType) (Effect, bool) {
	e, ok := Effects[t]
	return e, ok
}

// AffectsQuantity indica si el tipo lleva un delta de cantidad (total o reservado).
func (e Effect) AffectsQuantity() bool {
	return e.Target == TargetQuantity || e.Target == TargetReserved
}

// IsMinimum indica si el tipo solo modifica el stock mínimo.
func (e Effect) IsMinimum() bool {
	return e.Target == TargetMinimum
}

// Accepts indica si el delta respeta la convención de signo.
func (s Sign) Accepts(delta int64) bool {
	switch s {
	case SignPositive:
		return delta > 0
	case SignNegative:
		return delta < 0
	case SignAny:
		return true
	}
	return delta == 0
}

// IsTransferLeg TRANSFER_IN y TRANSFER_OUT, que solo escribe la entrega de un traslado.
func IsTransferLeg(t entity.TransactionType) bool {
	return t == entity.TxTransferIn || t == entity.TxTransferOut
}

// ParseType valida un tipo contra el conjunto cerrado.
func ParseType(s string) (entity.TransactionType, bool) {
	t := entity.TransactionType(s)
	_, ok := Effects[t]
	return t, ok
}

// MinimumType tipo MIN_STOCK_* correspondiente a un delta.
func MinimumType(delta int64) entity.TransactionType {
	switch {
	case delta > 0:
		return entity.TxMinStockIncrease
	case delta < 0:
		return entity.TxMinStockDecrease
	}
	return entity.TxMinStockReset
}
