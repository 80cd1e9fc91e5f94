package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTransferItemRequest línea solicitada.
type CreateTransferItemRequest struct {
	DrugID       string `json:"drug_id"`
	RequestedQty int64  `json:"requested_qty"`
}

// CreateTransferRequest entrada para crear una requisición de traslado.
// RequisitionNumber vacío genera uno automáticamente.
type CreateTransferRequest struct {
	RequisitionNumber string                      `json:"requisition_number,omitempty"`
	FromDept          string                      `json:"from_dept"`
	ToDept            string                      `json:"to_dept"`
	Purpose           string                      `json:"purpose,omitempty"`
	Notes             string                      `json:"notes,omitempty"`
	Items             []CreateTransferItemRequest `json:"items"`
}

// ItemQuantity cantidad de una etapa para un ítem. El ítem se identifica por
// ItemID o, si está vacío, por DrugID.
type ItemQuantity struct {
	ItemID   string `json:"item_id,omitempty"`
	DrugID   string `json:"drug_id,omitempty"`
	Quantity int64  `json:"quantity"`
}

// ApproveTransferRequest cantidades aprobadas por ítem.
type ApproveTransferRequest struct {
	Items          []ItemQuantity `json:"items"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// DispenseItem cantidad despachada y lote de un ítem.
type DispenseItem struct {
	ItemID       string     `json:"item_id,omitempty"`
	DrugID       string     `json:"drug_id,omitempty"`
	Quantity     int64      `json:"quantity"`
	LotNumber    string     `json:"lot_number,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	Manufacturer string     `json:"manufacturer,omitempty"`
}

// PrepareTransferRequest cantidades despachadas y lotes por ítem.
type PrepareTransferRequest struct {
	Items          []DispenseItem `json:"items"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// DeliverTransferRequest cantidades recibidas por ítem.
type DeliverTransferRequest struct {
	Items          []ItemQuantity `json:"items"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CancelTransferRequest motivo de cancelación.
type CancelTransferRequest struct {
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ListTransfersRequest filtros de listado.
type ListTransfersRequest struct {
	Status   string `query:"status"`
	FromDept string `query:"from_dept"`
	ToDept   string `query:"to_dept"`
	PageRequest
}

// TransferItemResponse salida de una línea de traslado.
type TransferItemResponse struct {
	ID           string          `json:"id"`
	DrugID       string          `json:"drug_id"`
	Stage        string          `json:"stage"`
	RequestedQty int64           `json:"requested_qty"`
	ApprovedQty  *int64          `json:"approved_qty,omitempty"`
	DispensedQty *int64          `json:"dispensed_qty,omitempty"`
	ReceivedQty  *int64          `json:"received_qty,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalValue   decimal.Decimal `json:"total_value"`
	LotNumber    string          `json:"lot_number,omitempty"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
}

// TransferResponse salida de un traslado.
type TransferResponse struct {
	ID                string                 `json:"id"`
	RequisitionNumber string                 `json:"requisition_number"`
	FromDept          string                 `json:"from_dept"`
	ToDept            string                 `json:"to_dept"`
	Status            string                 `json:"status"`
	RequesterID       string                 `json:"requester_id"`
	ApproverID        string                 `json:"approver_id,omitempty"`
	DispenserID       string                 `json:"dispenser_id,omitempty"`
	ReceiverID        string                 `json:"receiver_id,omitempty"`
	CancelledBy       string                 `json:"cancelled_by,omitempty"`
	CancelReason      string                 `json:"cancel_reason,omitempty"`
	Purpose           string                 `json:"purpose,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	TotalItems        int                    `json:"total_items"`
	TotalValue        decimal.Decimal        `json:"total_value"`
	Items             []TransferItemResponse `json:"items"`
	Version           int64                  `json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	ApprovedAt        *time.Time             `json:"approved_at,omitempty"`
	PreparedAt        *time.Time             `json:"prepared_at,omitempty"`
	DeliveredAt       *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time             `json:"cancelled_at,omitempty"`
}

// TransferListResponse lista paginada de traslados.
type TransferListResponse struct {
	Items []TransferResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
