package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tipo cerrado de movimiento del ledger. El efecto de cada tipo
// está definido una sola vez en domain/ledger.
type TransactionType string

const (
	TxReceiveExternal  TransactionType = "RECEIVE_EXTERNAL"
	TxDispenseExternal TransactionType = "DISPENSE_EXTERNAL"
	TxTransferIn       TransactionType = "TRANSFER_IN"
	TxTransferOut      TransactionType = "TRANSFER_OUT"
	TxAdjustIncrease   TransactionType = "ADJUST_INCREASE"
	TxAdjustDecrease   TransactionType = "ADJUST_DECREASE"
	TxReserve          TransactionType = "RESERVE"
	TxUnreserve        TransactionType = "UNRESERVE"
	TxMinStockIncrease TransactionType = "MIN_STOCK_INCREASE"
	TxMinStockDecrease TransactionType = "MIN_STOCK_DECREASE"
	TxMinStockReset    TransactionType = "MIN_STOCK_RESET"
	TxDataUpdate       TransactionType = "DATA_UPDATE"
	TxPriceUpdate      TransactionType = "PRICE_UPDATE"
	TxInfoCorrection   TransactionType = "INFO_CORRECTION"
)

// StockTransaction registro inmutable del ledger. Append-only: nunca se actualiza ni se elimina.
type StockTransaction struct {
	ID       string
	StockID  string
	Sequence int64 // orden de reproducción dentro del stock
	ActorID  string
	Type     TransactionType
	Quantity *int64 // delta con signo; nil para tipos sin efecto en cantidad

	BeforeQty      int64
	AfterQty       int64
	BeforeReserved int64
	AfterReserved  int64

	// Solo para MIN_STOCK_*.
	BeforeMinStock *int64
	AfterMinStock  *int64
	MinStockChange *int64

	UnitCost   decimal.Decimal
	TotalCost  decimal.Decimal
	Reference  string // correlaciona movimientos pareados (ej. número de requisición)
	TransferID string
	Note       string
	CreatedAt  time.Time
}
