package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// TransferFilter filtros para listar traslados.
type TransferFilter struct {
	Status   entity.TransferStatus
	FromDept entity.Department
	ToDept   entity.Department
	Limit    int // 0 = sin límite
	Offset   int
}

// TransferRepository define el puerto de persistencia para traslados y sus ítems.
type TransferRepository interface {
	// Create inserta cabecera e ítems; ErrDuplicate si el número de requisición existe.
	Create(ctx context.Context, transfer *entity.Transfer) error
	GetByID(ctx context.Context, id string) (*entity.Transfer, error)
	GetByRequisition(ctx context.Context, number string) (*entity.Transfer, error)
	// GetForUpdate bloquea la cabecera hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error)
	// Update escribe cabecera e ítems si la versión persistida es expectedVersion
	// (ErrStaleVersion si no) e incrementa transfer.Version.
	Update(ctx context.Context, transfer *entity.Transfer, expectedVersion int64) error
	List(ctx context.Context, filter TransferFilter) ([]*entity.Transfer, error)
}
