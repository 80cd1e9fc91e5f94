package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockTransactionRepository = (*StockTransactionRepo)(nil)

// StockTransactionRepo ledger en memoria, solo inserción.
type StockTransactionRepo struct {
	exec execFunc
}

// Create exige secuencia creciente por stock (equivalente al UNIQUE (stock_id, sequence)).
func (r *StockTransactionRepo) Create(ctx context.Context, txn *entity.StockTransaction) error {
	return r.exec(ctx, true, func(st *state) error {
		if _, ok := st.stocks[txn.StockID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrStockNotFound, txn.StockID)
		}
		entries := st.ledger[txn.StockID]
		if n := len(entries); n > 0 && entries[n-1].Sequence >= txn.Sequence {
			return fmt.Errorf("%w: movimiento #%d del stock %s", domain.ErrDuplicate, txn.Sequence, txn.StockID)
		}
		st.ledger[txn.StockID] = append(entries, *txn)
		return nil
	})
}

func (r *StockTransactionRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	var out *entity.StockTransaction
	err := r.exec(ctx, false, func(st *state) error {
		for _, entries := range st.ledger {
			for _, e := range entries {
				if e.ID == id {
					e := e
					out = &e
					return nil
				}
			}
		}
		return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
	})
	return out, err
}

func (r *StockTransactionRepo) Latest(ctx context.Context, stockID string) (*entity.StockTransaction, error) {
	var out *entity.StockTransaction
	err := r.exec(ctx, false, func(st *state) error {
		entries := st.ledger[stockID]
		if n := len(entries); n > 0 {
			e := entries[n-1]
			out = &e
		}
		return nil
	})
	return out, err
}

func (r *StockTransactionRepo) LatestMinimum(ctx context.Context, stockID string) (*entity.StockTransaction, error) {
	var out *entity.StockTransaction
	err := r.exec(ctx, false, func(st *state) error {
		entries := st.ledger[stockID]
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].AfterMinStock != nil {
				e := entries[i]
				out = &e
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *StockTransactionRepo) ListByStock(ctx context.Context, stockID string) ([]*entity.StockTransaction, error) {
	out := []*entity.StockTransaction{}
	err := r.exec(ctx, false, func(st *state) error {
		for _, e := range st.ledger[stockID] {
			e := e
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

func (r *StockTransactionRepo) ListByTransfer(ctx context.Context, transferID string) ([]*entity.StockTransaction, error) {
	return r.filter(ctx, func(e *entity.StockTransaction) bool { return e.TransferID == transferID })
}

func (r *StockTransactionRepo) ListByReference(ctx context.Context, reference string) ([]*entity.StockTransaction, error) {
	return r.filter(ctx, func(e *entity.StockTransaction) bool { return e.Reference == reference })
}

// filter devuelve en orden de creación y, a igual instante, de secuencia.
func (r *StockTransactionRepo) filter(ctx context.Context, keep func(*entity.StockTransaction) bool) ([]*entity.StockTransaction, error) {
	out := []*entity.StockTransaction{}
	err := r.exec(ctx, false, func(st *state) error {
		for _, entries := range st.ledger {
			for i := range entries {
				e := entries[i]
				if keep(&e) {
					out = append(out, &e)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].StockID != out[j].StockID {
			return out[i].StockID < out[j].StockID
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}
