package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// StockFilter filtros para listar stock.
type StockFilter struct {
	Department entity.Department // vacío = todos
	DrugID     string
	Limit      int // 0 = sin límite
	Offset     int
}

// StockRepository define el puerto para consultar/actualizar stock por medicamento+departamento.
// Usado dentro de transacciones para garantizar consistencia con el ledger.
type StockRepository interface {
	// Create inserta una fila nueva; ErrDuplicate si ya existe el par (medicamento, departamento).
	Create(ctx context.Context, stock *entity.Stock) error
	GetByID(ctx context.Context, id string) (*entity.Stock, error)
	GetByDrug(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error)
	// GetForUpdate bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Stock, error)
	GetByDrugForUpdate(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error)
	Update(ctx context.Context, stock *entity.Stock) error
	SetQuarantine(ctx context.Context, id string, quarantined bool, reason string) error
	List(ctx context.Context, filter StockFilter) ([]*entity.Stock, error)
}
