package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo persistencia de traslados (cabecera en transfers, líneas en transfer_items).
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

const transferColumns = `
	id, requisition_number, from_dept, to_dept, requester_id, approver_id, dispenser_id,
	receiver_id, cancelled_by, status, purpose, notes, cancel_reason, total_items, total_value,
	idempotency_keys, version, created_at, updated_at, approved_at, prepared_at, delivered_at, cancelled_at`

const transferItemColumns = `
	id, transfer_id, drug_id, unit_price, total_value, stage,
	requested_qty, approved_qty, dispensed_qty, received_qty,
	lot_number, expiry_date, manufacturer`

func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	keys, err := json.Marshal(t.IdempotencyKeys)
	if err != nil {
		return fmt.Errorf("encode idempotency keys: %w", err)
	}
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err = r.q.Exec(ctx, query,
		t.ID, t.RequisitionNumber, string(t.FromDept), string(t.ToDept), t.RequesterID,
		nullIfEmpty(t.ApproverID), nullIfEmpty(t.DispenserID), nullIfEmpty(t.ReceiverID), nullIfEmpty(t.CancelledBy),
		string(t.Status), t.Purpose, t.Notes, t.CancelReason, t.TotalItems, t.TotalValue,
		keys, t.Version, t.CreatedAt, t.UpdatedAt, t.ApprovedAt, t.PreparedAt, t.DeliveredAt, t.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: requisición %s", domain.ErrDuplicate, t.RequisitionNumber)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	for i, it := range t.Items {
		if err := r.insertItem(ctx, i, it.State()); err != nil {
			return err
		}
	}
	return nil
}

func (r *TransferRepo) insertItem(ctx context.Context, position int, st entity.TransferItemState) error {
	lot, expiry, manufacturer := batchColumns(st.Batch)
	query := `
		INSERT INTO transfer_items (` + transferItemColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		st.ID, st.TransferID, st.DrugID, st.UnitPrice, st.TotalValue, int(st.Stage),
		st.RequestedQty, st.ApprovedQty, st.DispensedQty, st.ReceivedQty,
		lot, expiry, manufacturer, position,
	)
	if err != nil {
		return fmt.Errorf("insert transfer item: %w", err)
	}
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, `id = $1`, false, id)
}

func (r *TransferRepo) GetByRequisition(ctx context.Context, number string) (*entity.Transfer, error) {
	return r.get(ctx, `requisition_number = $1`, false, number)
}

// GetForUpdate bloquea la cabecera; los ítems solo se escriben con la cabecera bloqueada.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, `id = $1`, true, id)
}

func (r *TransferRepo) get(ctx context.Context, where string, lock bool, arg string) (*entity.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	t, err := scanTransfer(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, arg)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if err := r.loadItems(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update escribe la cabecera solo si la versión coincide y luego las etapas de cada ítem.
func (r *TransferRepo) Update(ctx context.Context, t *entity.Transfer, expectedVersion int64) error {
	keys, err := json.Marshal(t.IdempotencyKeys)
	if err != nil {
		return fmt.Errorf("encode idempotency keys: %w", err)
	}
	query := `
		UPDATE transfers
		SET approver_id = $3, dispenser_id = $4, receiver_id = $5, cancelled_by = $6,
		    status = $7, cancel_reason = $8, total_items = $9, total_value = $10,
		    idempotency_keys = $11, version = version + 1, updated_at = $12,
		    approved_at = $13, prepared_at = $14, delivered_at = $15, cancelled_at = $16
		WHERE id = $1 AND version = $2`
	tag, err := r.q.Exec(ctx, query,
		t.ID, expectedVersion,
		nullIfEmpty(t.ApproverID), nullIfEmpty(t.DispenserID), nullIfEmpty(t.ReceiverID), nullIfEmpty(t.CancelledBy),
		string(t.Status), t.CancelReason, t.TotalItems, t.TotalValue,
		keys, t.UpdatedAt, t.ApprovedAt, t.PreparedAt, t.DeliveredAt, t.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: traslado %s versión %d", domain.ErrStaleVersion, t.ID, expectedVersion)
	}
	for _, it := range t.Items {
		if err := r.updateItem(ctx, it.State()); err != nil {
			return err
		}
	}
	t.Version = expectedVersion + 1
	return nil
}

func (r *TransferRepo) updateItem(ctx context.Context, st entity.TransferItemState) error {
	lot, expiry, manufacturer := batchColumns(st.Batch)
	query := `
		UPDATE transfer_items
		SET total_value = $3, stage = $4, approved_qty = $5, dispensed_qty = $6, received_qty = $7,
		    lot_number = $8, expiry_date = $9, manufacturer = $10
		WHERE id = $1 AND transfer_id = $2`
	tag, err := r.q.Exec(ctx, query,
		st.ID, st.TransferID, st.TotalValue, int(st.Stage),
		st.ApprovedQty, st.DispensedQty, st.ReceivedQty,
		lot, expiry, manufacturer,
	)
	if err != nil {
		return fmt.Errorf("update transfer item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTransferItemAbsent, st.ID)
	}
	return nil
}

func (r *TransferRepo) List(ctx context.Context, filter repository.TransferFilter) ([]*entity.Transfer, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.FromDept != "" {
		args = append(args, string(filter.FromDept))
		conds = append(conds, fmt.Sprintf("from_dept = $%d", len(args)))
	}
	if filter.ToDept != "" {
		args = append(args, string(filter.ToDept))
		conds = append(conds, fmt.Sprintf("to_dept = $%d", len(args)))
	}
	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	query = withPage(query, &args, filter.Limit, filter.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	var list []*entity.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		list = append(list, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// La conexión queda libre al cerrar rows; recién ahí se pueden leer los ítems.
	for _, t := range list {
		if err := r.loadItems(ctx, t); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *TransferRepo) loadItems(ctx context.Context, t *entity.Transfer) error {
	query := `SELECT ` + transferItemColumns + ` FROM transfer_items WHERE transfer_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, query, t.ID)
	if err != nil {
		return fmt.Errorf("list transfer items: %w", err)
	}
	defer rows.Close()
	t.Items = t.Items[:0]
	for rows.Next() {
		var (
			st           entity.TransferItemState
			stage        int
			lot          *string
			expiry       *time.Time
			manufacturer *string
		)
		if err := rows.Scan(
			&st.ID, &st.TransferID, &st.DrugID, &st.UnitPrice, &st.TotalValue, &stage,
			&st.RequestedQty, &st.ApprovedQty, &st.DispensedQty, &st.ReceivedQty,
			&lot, &expiry, &manufacturer,
		); err != nil {
			return fmt.Errorf("scan transfer item: %w", err)
		}
		st.Stage = entity.ItemStage(stage)
		if lot != nil && expiry != nil {
			st.Batch = &entity.Batch{LotNumber: *lot, ExpiryDate: *expiry, Manufacturer: derefStr(manufacturer)}
		}
		it, err := entity.RestoreTransferItem(st)
		if err != nil {
			return err
		}
		t.Items = append(t.Items, it)
	}
	return rows.Err()
}

func scanTransfer(row pgx.Row) (*entity.Transfer, error) {
	var (
		t                                 entity.Transfer
		from, to, status                  string
		approver, dispenser, receiver, by *string
		keys                              []byte
	)
	err := row.Scan(
		&t.ID, &t.RequisitionNumber, &from, &to, &t.RequesterID, &approver, &dispenser,
		&receiver, &by, &status, &t.Purpose, &t.Notes, &t.CancelReason, &t.TotalItems, &t.TotalValue,
		&keys, &t.Version, &t.CreatedAt, &t.UpdatedAt, &t.ApprovedAt, &t.PreparedAt, &t.DeliveredAt, &t.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	t.FromDept = entity.Department(from)
	t.ToDept = entity.Department(to)
	t.Status = entity.TransferStatus(status)
	t.ApproverID = derefStr(approver)
	t.DispenserID = derefStr(dispenser)
	t.ReceiverID = derefStr(receiver)
	t.CancelledBy = derefStr(by)
	t.IdempotencyKeys = map[entity.TransferStatus]string{}
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &t.IdempotencyKeys); err != nil {
			return nil, fmt.Errorf("decode idempotency keys: %w", err)
		}
	}
	return &t, nil
}

func batchColumns(b *entity.Batch) (lot *string, expiry *time.Time, manufacturer *string) {
	if b == nil {
		return nil, nil, nil
	}
	e := b.ExpiryDate
	return &b.LotNumber, &e, nullIfEmpty(b.Manufacturer)
}
