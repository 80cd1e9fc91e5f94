package ledger

import (
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ReconciliationReference referencia de los INFO_CORRECTION emitidos por una reconciliación explícita.
const ReconciliationReference = "RECONCILIATION"

// Gap discrepancia detectada al reproducir el ledger.
type Gap struct {
	Sequence int64
	Field    string
	Expected int64
	Found    int64
}

func (g Gap) String() string {
	if g.Sequence == 0 {
		return fmt.Sprintf("stock.%s: ledger %d, stock %d", g.Field, g.Expected, g.Found)
	}
	return fmt.Sprintf("#%d %s: esperado %d, registrado %d", g.Sequence, g.Field, g.Expected, g.Found)
}

// Baseline línea base de un stock al aprovisionarse.
func Baseline(s *entity.Stock) entity.StockSnapshot {
	return entity.StockSnapshot{
		Quantity: s.InitialQuantity,
		Reserved: s.InitialReserved,
		Minimum:  s.InitialMinimumStock,
	}
}

// Replay reproduce los movimientos en orden desde base y devuelve el estado derivado
// junto con las discrepancias de encadenamiento (before de un movimiento distinto del
// after del anterior). Un INFO_CORRECTION de reconciliación fija el estado y descarta
// las discrepancias previas, que quedaron reconocidas explícitamente.
func Replay(base entity.StockSnapshot, entries []*entity.StockTransaction) (entity.StockSnapshot, []Gap) {
	run := base
	var gaps []Gap
	check := func(seq int64, field string, expected, found int64) {
		if expected != found {
			gaps = append(gaps, Gap{Sequence: seq, Field: field, Expected: expected, Found: found})
		}
	}
	for _, e := range entries {
		if e.Type == entity.TxInfoCorrection && e.Reference == ReconciliationReference {
			gaps = nil
			run.Quantity = e.AfterQty
			run.Reserved = e.AfterReserved
			if e.AfterMinStock != nil {
				run.Minimum = *e.AfterMinStock
			}
			continue
		}
		eff, ok := EffectOf(e.Type)
		if !ok {
			gaps = append(gaps, Gap{Sequence: e.Sequence, Field: "type"})
			continue
		}
		check(e.Sequence, "beforeQty", run.Quantity, e.BeforeQty)
		check(e.Sequence, "beforeReserved", run.Reserved, e.BeforeReserved)
		switch eff.Target {
		case TargetQuantity:
			if e.Quantity != nil {
				run.Quantity += *e.Quantity
			}
		case TargetReserved:
			if e.Quantity != nil {
				run.Reserved += *e.Quantity
			}
		case TargetMinimum:
			if e.BeforeMinStock != nil {
				check(e.Sequence, "beforeMinStock", run.Minimum, *e.BeforeMinStock)
			}
			if e.MinStockChange != nil {
				run.Minimum += *e.MinStockChange
			}
			if e.AfterMinStock != nil {
				check(e.Sequence, "afterMinStock", run.Minimum, *e.AfterMinStock)
			}
		}
		check(e.Sequence, "afterQty", run.Quantity, e.AfterQty)
		check(e.Sequence, "afterReserved", run.Reserved, e.AfterReserved)
	}
	return run, gaps
}

// Compare discrepancias entre el estado derivado del ledger y el stock en caché.
func Compare(derived entity.StockSnapshot, s *entity.Stock) []Gap {
	var gaps []Gap
	if derived.Quantity != s.TotalQuantity {
		gaps = append(gaps, Gap{Field: "totalQuantity", Expected: derived.Quantity, Found: s.TotalQuantity})
	}
	if derived.Reserved != s.ReservedQty {
		gaps = append(gaps, Gap{Field: "reservedQty", Expected: derived.Reserved, Found: s.ReservedQty})
	}
	if derived.Minimum != s.MinimumStock {
		gaps = append(gaps, Gap{Field: "minimumStock", Expected: derived.Minimum, Found: s.MinimumStock})
	}
	return gaps
}
