package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `
	id, drug_id, department, total_quantity, reserved_qty, minimum_stock,
	unit_cost, total_value, initial_quantity, initial_reserved, initial_minimum_stock,
	quarantined, quarantine_reason, created_at, last_updated`

func scanStock(row pgx.Row) (*entity.Stock, error) {
	var s entity.Stock
	var dept string
	err := row.Scan(
		&s.ID, &s.DrugID, &dept, &s.TotalQuantity, &s.ReservedQty, &s.MinimumStock,
		&s.UnitCost, &s.TotalValue, &s.InitialQuantity, &s.InitialReserved, &s.InitialMinimumStock,
		&s.Quarantined, &s.QuarantineReason, &s.CreatedAt, &s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	s.Department = entity.Department(dept)
	return &s, nil
}

// Create inserta la fila. ON CONFLICT DO NOTHING no aborta la transacción del llamador:
// si el par ya existe devuelve ErrDuplicate y el llamador puede releer.
func (r *StockRepo) Create(ctx context.Context, s *entity.Stock) error {
	query := `
		INSERT INTO stock (` + stockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (drug_id, department) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		s.ID, s.DrugID, string(s.Department), s.TotalQuantity, s.ReservedQty, s.MinimumStock,
		s.UnitCost, s.TotalValue, s.InitialQuantity, s.InitialReserved, s.InitialMinimumStock,
		s.Quarantined, s.QuarantineReason, s.CreatedAt, s.LastUpdated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: stock %s", domain.ErrDuplicate, s.ID)
		}
		return fmt.Errorf("insert stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock %s en %s", domain.ErrDuplicate, s.DrugID, s.Department)
	}
	return nil
}

func (r *StockRepo) get(ctx context.Context, where string, lock bool, args ...any) (*entity.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stock WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	s, err := scanStock(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", domain.ErrStockNotFound, args)
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

func (r *StockRepo) GetByID(ctx context.Context, id string) (*entity.Stock, error) {
	return r.get(ctx, `id = $1`, false, id)
}

func (r *StockRepo) GetByDrug(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error) {
	return r.get(ctx, `drug_id = $1 AND department = $2`, false, drugID, string(dept))
}

// GetForUpdate obtiene el stock y bloquea la fila para update (SELECT FOR UPDATE).
func (r *StockRepo) GetForUpdate(ctx context.Context, id string) (*entity.Stock, error) {
	return r.get(ctx, `id = $1`, true, id)
}

func (r *StockRepo) GetByDrugForUpdate(ctx context.Context, drugID string, dept entity.Department) (*entity.Stock, error) {
	return r.get(ctx, `drug_id = $1 AND department = $2`, true, drugID, string(dept))
}

// Update escribe cantidades, costo y valor; la cuarentena se cambia solo con SetQuarantine.
func (r *StockRepo) Update(ctx context.Context, s *entity.Stock) error {
	query := `
		UPDATE stock
		SET total_quantity = $2,
		    reserved_qty   = $3,
		    minimum_stock  = $4,
		    unit_cost      = $5,
		    total_value    = $6,
		    last_updated   = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		s.ID, s.TotalQuantity, s.ReservedQty, s.MinimumStock, s.UnitCost, s.TotalValue, s.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrStockNotFound, s.ID)
	}
	return nil
}

func (r *StockRepo) SetQuarantine(ctx context.Context, id string, quarantined bool, reason string) error {
	if !quarantined {
		reason = ""
	}
	tag, err := r.q.Exec(ctx, `UPDATE stock SET quarantined = $2, quarantine_reason = $3 WHERE id = $1`, id, quarantined, reason)
	if err != nil {
		return fmt.Errorf("set quarantine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrStockNotFound, id)
	}
	return nil
}

func (r *StockRepo) List(ctx context.Context, filter repository.StockFilter) ([]*entity.Stock, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Department != "" {
		args = append(args, string(filter.Department))
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.DrugID != "" {
		args = append(args, filter.DrugID)
		conds = append(conds, fmt.Sprintf("drug_id = $%d", len(args)))
	}
	query := `SELECT ` + stockColumns + ` FROM stock`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY department, drug_id, id`
	query = withPage(query, &args, filter.Limit, filter.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// withPage agrega LIMIT/OFFSET parametrizados; limit 0 = sin límite.
func withPage(query string, args *[]any, limit, offset int) string {
	if limit > 0 {
		*args = append(*args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return query
}
