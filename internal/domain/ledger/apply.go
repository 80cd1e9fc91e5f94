package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// Change movimiento propuesto sobre un stock.
type Change struct {
	Type      entity.TransactionType
	Quantity  *int64           // delta con signo para tipos de cantidad o reservado
	MinChange *int64           // delta con signo para MIN_STOCK_*
	UnitCost  *decimal.Decimal // nil usa el costo vigente del stock
}

// Outcome resultado validado de aplicar un Change; no modifica el stock hasta ApplyTo.
type Outcome struct {
	Effect    Effect
	Before    entity.StockSnapshot
	After     entity.StockSnapshot
	UnitCost  decimal.Decimal // costo del movimiento
	TotalCost decimal.Decimal
	StockCost decimal.Decimal // costo unitario del stock tras el movimiento
}

// Apply valida el movimiento contra el estado actual del stock y calcula el resultado.
func Apply(s *entity.Stock, c Change) (Outcome, error) {
	eff, ok := EffectOf(c.Type)
	if !ok {
		return Outcome{}, domain.Validation("tipo de movimiento desconocido %q", c.Type)
	}
	out := Outcome{Effect: eff, Before: s.Snapshot(), StockCost: s.UnitCost, UnitCost: s.UnitCost}
	out.After = out.Before

	switch {
	case eff.AffectsQuantity():
		if c.MinChange != nil {
			return Outcome{}, domain.Validation("%s no admite cambio de mínimo", c.Type)
		}
		if c.Quantity == nil || !eff.Sign.Accepts(*c.Quantity) {
			return Outcome{}, domain.Validation("%s requiere cantidad %s", c.Type, signLabel(eff.Sign))
		}
		if eff.Target == TargetQuantity {
			out.After.Quantity += *c.Quantity
		} else {
			out.After.Reserved += *c.Quantity
		}
	case eff.IsMinimum():
		if c.Quantity != nil {
			return Outcome{}, domain.Validation("%s no modifica la cantidad", c.Type)
		}
		if c.MinChange == nil || !eff.Sign.Accepts(*c.MinChange) {
			return Outcome{}, domain.Validation("%s requiere cambio de mínimo %s", c.Type, signLabel(eff.Sign))
		}
		out.After.Minimum += *c.MinChange
	default:
		if c.Quantity != nil || c.MinChange != nil {
			return Outcome{}, domain.Validation("%s es descriptivo y no lleva cantidades", c.Type)
		}
	}

	if err := checkBounds(out.Before, out.After); err != nil {
		return Outcome{}, err
	}

	if c.UnitCost != nil {
		if c.UnitCost.IsNegative() {
			return Outcome{}, domain.Validation("costo unitario negativo")
		}
		out.UnitCost = *c.UnitCost
		switch c.Type {
		case entity.TxReceiveExternal:
			out.StockCost = CostCalculator(out.Before.Quantity, s.UnitCost, *c.Quantity, *c.UnitCost)
		case entity.TxPriceUpdate:
			out.StockCost = *c.UnitCost
		}
	}
	if eff.Target == TargetQuantity {
		out.TotalCost = out.UnitCost.Mul(decimal.NewFromInt(*c.Quantity))
	}
	return out, nil
}

// ApplyTo escribe el resultado en el stock (misma transacción que inserta el movimiento).
func (o Outcome) ApplyTo(s *entity.Stock, now time.Time) {
	s.TotalQuantity = o.After.Quantity
	s.ReservedQty = o.After.Reserved
	s.MinimumStock = o.After.Minimum
	s.UnitCost = o.StockCost
	s.RefreshValue()
	s.LastUpdated = now
}

func checkBounds(before, after entity.StockSnapshot) error {
	if after.Reserved < 0 {
		return domain.Validation("la liberación excede lo reservado (%d)", before.Reserved)
	}
	if after.Quantity < 0 || after.Quantity-after.Reserved < 0 {
		return fmt.Errorf("%w: disponible %d, resultado %d", domain.ErrInsufficientStock,
			before.Quantity-before.Reserved, after.Quantity-after.Reserved)
	}
	if after.Minimum < 0 {
		return domain.Validation("el stock mínimo no puede ser negativo (resultado %d)", after.Minimum)
	}
	return nil
}

func signLabel(s Sign) string {
	switch s {
	case SignPositive:
		return "positiva"
	case SignNegative:
		return "negativa"
	}
	return "definida"
}
