package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo traslados en memoria. Los ítems se reconstruyen con RestoreTransferItem en cada lectura.
type TransferRepo struct {
	exec execFunc
}

func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	return r.exec(ctx, true, func(st *state) error {
		if _, ok := st.byNumber[t.RequisitionNumber]; ok {
			return fmt.Errorf("%w: requisición %s", domain.ErrDuplicate, t.RequisitionNumber)
		}
		if _, ok := st.transfers[t.ID]; ok {
			return fmt.Errorf("%w: traslado %s", domain.ErrDuplicate, t.ID)
		}
		st.transfers[t.ID] = recordOf(t)
		st.byNumber[t.RequisitionNumber] = t.ID
		return nil
	})
}

func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	var out *entity.Transfer
	err := r.exec(ctx, false, func(st *state) error {
		rec, ok := st.transfers[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}
		var err error
		out, err = rec.transfer()
		return err
	})
	return out, err
}

func (r *TransferRepo) GetByRequisition(ctx context.Context, number string) (*entity.Transfer, error) {
	var id string
	err := r.exec(ctx, false, func(st *state) error {
		var ok bool
		if id, ok = st.byNumber[number]; !ok {
			return fmt.Errorf("%w: requisición %s", domain.ErrTransferNotFound, number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.GetByID(ctx, id)
}

// Update escribe si la versión guardada es expectedVersion e incrementa t.Version.
func (r *TransferRepo) Update(ctx context.Context, t *entity.Transfer, expectedVersion int64) error {
	return r.exec(ctx, true, func(st *state) error {
		cur, ok := st.transfers[t.ID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, t.ID)
		}
		if cur.Header.Version != expectedVersion {
			return fmt.Errorf("%w: traslado %s versión %d, esperada %d", domain.ErrStaleVersion, t.ID, cur.Header.Version, expectedVersion)
		}
		t.Version = expectedVersion + 1
		st.transfers[t.ID] = recordOf(t)
		return nil
	})
}

// List más recientes primero.
func (r *TransferRepo) List(ctx context.Context, filter repository.TransferFilter) ([]*entity.Transfer, error) {
	var recs []TransferRecord
	err := r.exec(ctx, false, func(st *state) error {
		for _, rec := range st.transfers {
			h := rec.Header
			if filter.Status != "" && h.Status != filter.Status {
				continue
			}
			if filter.FromDept != "" && h.FromDept != filter.FromDept {
				continue
			}
			if filter.ToDept != "" && h.ToDept != filter.ToDept {
				continue
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].Header, recs[j].Header
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	recs = paginate(recs, filter.Limit, filter.Offset)
	out := make([]*entity.Transfer, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.transfer()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
