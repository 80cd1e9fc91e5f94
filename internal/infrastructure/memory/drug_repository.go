package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.DrugRepository = (*DrugRepo)(nil)

// DrugRepo catálogo en memoria.
type DrugRepo struct {
	exec execFunc
}

func (r *DrugRepo) GetByID(ctx context.Context, id string) (*entity.Drug, error) {
	var out *entity.Drug
	err := r.exec(ctx, false, func(st *state) error {
		d, ok := st.drugs[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrDrugNotFound, id)
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *DrugRepo) GetByCode(ctx context.Context, code string) (*entity.Drug, error) {
	var out *entity.Drug
	err := r.exec(ctx, false, func(st *state) error {
		for _, d := range st.drugs {
			if d.Code == code {
				d := d
				out = &d
				return nil
			}
		}
		return fmt.Errorf("%w: código %s", domain.ErrDrugNotFound, code)
	})
	return out, err
}
