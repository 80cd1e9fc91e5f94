package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// DrugRepository lectura del catálogo de medicamentos (propiedad de otro sistema).
type DrugRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Drug, error)
	GetByCode(ctx context.Context, code string) (*entity.Drug, error)
}
