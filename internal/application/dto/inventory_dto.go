package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest entrada para registrar un movimiento en el ledger.
// Quantity es el delta con signo; nil para tipos descriptivos.
type RecordMovementRequest struct {
	StockID    string           `json:"stock_id"`
	Type       string           `json:"type"`
	Quantity   *int64           `json:"quantity,omitempty"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	Reference  string           `json:"reference,omitempty"`
	TransferID string           `json:"transfer_id,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// ProvisionStockRequest entrada para dar de alta un medicamento en un departamento.
type ProvisionStockRequest struct {
	DrugID          string `json:"drug_id"`
	Department      string `json:"department"`
	InitialQuantity int64  `json:"initial_quantity"`
	MinimumStock    int64  `json:"minimum_stock"`
}

// AdjustMinimumRequest entrada para ajustar el stock mínimo (punto de reorden).
type AdjustMinimumRequest struct {
	StockID    string `json:"stock_id"`
	Delta      int64  `json:"delta"`
	ReasonCode string `json:"reason_code"`
}

// SetMinimumRequest entrada para fijar el stock mínimo a un valor absoluto.
type SetMinimumRequest struct {
	StockID    string `json:"stock_id"`
	Target     int64  `json:"target"`
	ReasonCode string `json:"reason_code"`
}

// StockResponse salida de una fila de stock.
type StockResponse struct {
	ID               string          `json:"id"`
	DrugID           string          `json:"drug_id"`
	Department       string          `json:"department"`
	TotalQuantity    int64           `json:"total_quantity"`
	ReservedQty      int64           `json:"reserved_qty"`
	AvailableStock   int64           `json:"available_stock"`
	MinimumStock     int64           `json:"minimum_stock"`
	LowStock         bool            `json:"low_stock"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalValue       decimal.Decimal `json:"total_value"`
	Quarantined      bool            `json:"quarantined"`
	QuarantineReason string          `json:"quarantine_reason,omitempty"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// StockTransactionResponse salida de un movimiento del ledger.
type StockTransactionResponse struct {
	ID             string          `json:"id"`
	StockID        string          `json:"stock_id"`
	Sequence       int64           `json:"sequence"`
	ActorID        string          `json:"actor_id"`
	Type           string          `json:"type"`
	Quantity       *int64          `json:"quantity"`
	BeforeQty      int64           `json:"before_qty"`
	AfterQty       int64           `json:"after_qty"`
	BeforeReserved int64           `json:"before_reserved"`
	AfterReserved  int64           `json:"after_reserved"`
	BeforeMinStock *int64          `json:"before_min_stock,omitempty"`
	AfterMinStock  *int64          `json:"after_min_stock,omitempty"`
	MinStockChange *int64          `json:"min_stock_change,omitempty"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	Reference      string          `json:"reference,omitempty"`
	TransferID     string          `json:"transfer_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LowStockDTO fila con stock disponible en o bajo el mínimo, con sugerencia de pedido.
type LowStockDTO struct {
	StockID           string          `json:"stock_id"`
	DrugID            string          `json:"drug_id"`
	DrugCode          string          `json:"drug_code"`
	DrugName          string          `json:"drug_name"`
	Department        string          `json:"department"`
	AvailableStock    int64           `json:"available_stock"`
	MinimumStock      int64           `json:"minimum_stock"`
	IdealStock        int64           `json:"ideal_stock"`         // MinimumStock * 1.5
	SuggestedOrderQty int64           `json:"suggested_order_qty"` // IdealStock - AvailableStock
	UnitCost          decimal.Decimal `json:"unit_cost"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	Priority          int             `json:"priority"` // 1 = más urgente
}

// ReconciliationReport resultado de verificar un stock contra su ledger.
type ReconciliationReport struct {
	StockID        string    `json:"stock_id"`
	Entries        int       `json:"entries"`
	LedgerQuantity int64     `json:"ledger_quantity"`
	CachedQuantity int64     `json:"cached_quantity"`
	LedgerReserved int64     `json:"ledger_reserved"`
	CachedReserved int64     `json:"cached_reserved"`
	LedgerMinimum  int64     `json:"ledger_minimum"`
	CachedMinimum  int64     `json:"cached_minimum"`
	Consistent     bool      `json:"consistent"`
	Discrepancies  []string  `json:"discrepancies,omitempty"`
	Quarantined    bool      `json:"quarantined"`
	CheckedAt      time.Time `json:"checked_at"`
}

// StockListResponse lista paginada de stock.
type StockListResponse struct {
	Items []StockResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// StockLedger una fila de stock con su ledger completo.
type StockLedger struct {
	Stock        StockResponse              `json:"stock"`
	Transactions []StockTransactionResponse `json:"transactions"`
}

// LedgerExport documento de auditoría con el ledger de todos los stocks exportados.
type LedgerExport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Department  string        `json:"department,omitempty"`
	Entries     int           `json:"entries"`
	Stocks      []StockLedger `json:"stocks"`
}
