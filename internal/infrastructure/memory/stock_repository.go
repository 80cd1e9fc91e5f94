package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación en memoria de StockRepository.
type StockRepo struct {
	exec execFunc
}

func (r *StockRepo) Create(ctx context.Context, stock *entity.Stock) error {
	return r.exec(ctx, true, func(st *state) error {
		key := drugKey(stock.DrugID, stock.Department)
		if _, ok := st.stockByDrug[key]; ok {
			return fmt.Errorf("%w: stock %s en %s", domain.ErrDuplicate, stock.DrugID, stock.Department)
		}
		if _, ok := st.stocks[stock.ID]; ok {
			return fmt.Errorf("%w: stock %s", domain.ErrDuplicate, stock.ID)
		}
		st.stocks[stock.ID] = *stock
		st.stockByDrug[key] = stock.ID
		return nil
	})
}

func (r *StockRepo) GetByID(ctx context.Context, id string) (*entity.Stock, error) {
	var out *entity.Stock
	err := r.exec(ctx, false, func(st *state) error {
		s, ok := st.stocks[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrStockNotFound, id)
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *StockRepo) GetByDrug(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error) {
	var out *entity.Stock
	err := r.exec(ctx, false, func(st *state) error {
		id, ok := st.stockByDrug[drugKey(drugID, dept)]
		if !ok {
			return fmt.Errorf("%w: %s en %s", domain.ErrStockNotFound, drugID, dept)
		}
		s := st.stocks[id]
		out = &s
		return nil
	})
	return out, err
}

// GetForUpdate la transacción ya tiene el candado de escritura del almacén.
func (r *StockRepo) GetForUpdate(ctx context.Context, id string) (*entity.Stock, error) {
	return r.GetByID(ctx, id)
}

func (r *StockRepo) GetByDrugForUpdate(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error) {
	return r.GetByDrug(ctx, drugID, dept)
}

// Update escribe cantidades, costo y valor. La cuarentena solo cambia con SetQuarantine.
func (r *StockRepo) Update(ctx context.Context, stock *entity.Stock) error {
	return r.exec(ctx, true, func(st *state) error {
		cur, ok := st.stocks[stock.ID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrStockNotFound, stock.ID)
		}
		next := *stock
		next.Quarantined = cur.Quarantined
		next.QuarantineReason = cur.QuarantineReason
		st.stocks[stock.ID] = next
		return nil
	})
}

func (r *StockRepo) SetQuarantine(ctx context.Context, id string, quarantined bool, reason string) error {
	return r.exec(ctx, true, func(st *state) error {
		cur, ok := st.stocks[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrStockNotFound, id)
		}
		cur.Quarantined = quarantined
		cur.QuarantineReason = reason
		if !quarantined {
			cur.QuarantineReason = ""
		}
		st.stocks[id] = cur
		return nil
	})
}

// List ordena por departamento y medicamento, como el adaptador SQL.
func (r *StockRepo) List(ctx context.Context, filter repository.StockFilter) ([]*entity.Stock, error) {
	var out []*entity.Stock
	err := r.exec(ctx, false, func(st *state) error {
		for _, s := range st.stocks {
			if filter.Department != "" && s.Department != filter.Department {
				continue
			}
			if filter.DrugID != "" && s.DrugID != filter.DrugID {
				continue
			}
			s := s
			out = append(out, &s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Department != out[j].Department {
			return out[i].Department < out[j].Department
		}
		if out[i].DrugID != out[j].DrugID {
			return out[i].DrugID < out[j].DrugID
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
