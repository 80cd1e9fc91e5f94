package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock representa el stock actual de un medicamento en un departamento.
// Es un agregado materializado del ledger: solo se modifica en la misma transacción
// que inserta el StockTransaction correspondiente. Nunca se elimina.
type Stock struct {
	ID            string
	DrugID        string
	Department    Department
	TotalQuantity int64
	ReservedQty   int64
	MinimumStock  int64
	UnitCost      decimal.Decimal
	TotalValue    decimal.Decimal

	// Línea base para reproducir el ledger desde el aprovisionamiento.
	InitialQuantity     int64
	InitialReserved     int64
	InitialMinimumStock int64

	// Quarantined bloquea escrituras automáticas hasta una reconciliación explícita.
	Quarantined      bool
	QuarantineReason string

	CreatedAt   time.Time
	LastUpdated time.Time
}

// AvailableStock unidades que se pueden mover (total - reservado).
func (s *Stock) AvailableStock() int64 {
	return s.TotalQuantity - s.ReservedQty
}

// IsLowStock lectura derivada; nunca se persiste.
func (s *Stock) IsLowStock() bool {
	return s.AvailableStock() <= s.MinimumStock
}

// RefreshValue recalcula TotalValue con el costo unitario vigente.
func (s *Stock) RefreshValue() {
	s.TotalValue = s.UnitCost.Mul(decimal.NewFromInt(s.TotalQuantity))
}

// Snapshot valores del agregado relevantes para el ledger.
func (s *Stock) Snapshot() StockSnapshot {
	return StockSnapshot{
		Quantity: s.TotalQuantity,
		Reserved: s.ReservedQty,
		Minimum:  s.MinimumStock,
	}
}

// StockSnapshot cantidad, reservado y mínimo en un instante.
type StockSnapshot struct {
	Quantity int64
	Reserved int64
	Minimum  int64
}
