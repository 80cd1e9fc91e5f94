package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.DrugRepository = (*DrugRepo)(nil)

// DrugRepo lectura del catálogo de medicamentos.
type DrugRepo struct {
	q Querier
}

// NewDrugRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDrugRepository(q Querier) *DrugRepo {
	return &DrugRepo{q: q}
}

func (r *DrugRepo) get(ctx context.Context, where string, arg string) (*entity.Drug, error) {
	query := `
		SELECT id, code, name, dosage_form, unit_price, created_at, updated_at
		FROM drugs WHERE ` + where
	var d entity.Drug
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.Code, &d.Name, &d.DosageForm, &d.UnitPrice, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDrugNotFound, arg)
		}
		return nil, fmt.Errorf("get drug: %w", err)
	}
	return &d, nil
}

func (r *DrugRepo) GetByID(ctx context.Context, id string) (*entity.Drug, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *DrugRepo) GetByCode(ctx context.Context, code string) (*entity.Drug, error) {
	return r.get(ctx, `code = $1`, code)
}
