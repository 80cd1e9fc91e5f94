package inventory_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func TestProvisionStock(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "pharmacy", 100, 50)

	s := f.stock(t, id)
	assert.Equal(t, "PHARMACY", s.Department)
	assert.Equal(t, int64(100), s.TotalQuantity)
	assert.Equal(t, int64(50), s.MinimumStock)
	assert.True(t, decimal.RequireFromString("120").Equal(s.TotalValue))

	// una sola fila por (medicamento, departamento)
	again := f.provision(t, "drug-x", "PHARMACY", 5, 5)
	assert.Equal(t, id, again)
	assert.Equal(t, int64(100), f.stock(t, id).TotalQuantity)

	_, err := f.uc.ProvisionStock(f.ctx, actor, dto.ProvisionStockRequest{DrugID: "nope", Department: "OPD"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.uc.ProvisionStock(f.ctx, actor, dto.ProvisionStockRequest{DrugID: "drug-x", Department: "ER"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.ProvisionStock(f.ctx, "", dto.ProvisionStockRequest{DrugID: "drug-x", Department: "OPD"})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestRecord_UpdatesStockAndLedgerTogether(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "PHARMACY", 20, 5)

	cost := decimal.RequireFromString("2.00")
	txn, err := f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{
		StockID: id, Type: "RECEIVE_EXTERNAL", Quantity: qty(10), UnitCost: &cost, Reference: "OC-7",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), txn.Sequence)
	assert.Equal(t, int64(20), txn.BeforeQty)
	assert.Equal(t, int64(30), txn.AfterQty)
	assert.True(t, decimal.NewFromInt(20).Equal(txn.TotalCost))

	txn, err = f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "DISPENSE_EXTERNAL", Quantity: qty(-4)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), txn.Sequence)

	s := f.stock(t, id)
	assert.Equal(t, int64(26), s.TotalQuantity)
	// (20*1.20 + 10*2.00) / 30
	assert.Equal(t, "1.4667", s.UnitCost.StringFixed(4))

	history, err := f.uc.History(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "RECEIVE_EXTERNAL", history[0].Type)
	assert.Equal(t, "OC-7", history[0].Reference)
	assert.Equal(t, history[0].AfterQty, history[1].BeforeQty)
	assert.Equal(t, 1, f.metrics.writes[entity.TxReceiveExternal])
}

func TestRecord_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "PHARMACY", 20, 0)

	_, err := f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "DISPENSE_EXTERNAL", Quantity: qty(-30)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, "VALIDATION", dto.ErrorFrom(err).Code)

	assert.Equal(t, int64(20), f.stock(t, id).TotalQuantity)
	history, err := f.uc.History(f.ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 1, f.metrics.rejected["validation"])
}

func TestRecord_Rejections(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "PHARMACY", 20, 0)

	cases := []struct {
		name  string
		actor string
		req   dto.RecordMovementRequest
		want  error
	}{
		{"tipo desconocido", actor, dto.RecordMovementRequest{StockID: id, Type: "SALE", Quantity: qty(1)}, domain.ErrValidation},
		{"mínimo por Record", actor, dto.RecordMovementRequest{StockID: id, Type: "MIN_STOCK_INCREASE"}, domain.ErrValidation},
		{"sin actor", "", dto.RecordMovementRequest{StockID: id, Type: "RECEIVE_EXTERNAL", Quantity: qty(1)}, domain.ErrMissingActor},
		{"signo incorrecto", actor, dto.RecordMovementRequest{StockID: id, Type: "ADJUST_DECREASE", Quantity: qty(3)}, domain.ErrValidation},
		{"stock inexistente", actor, dto.RecordMovementRequest{StockID: "nope", Type: "RECEIVE_EXTERNAL", Quantity: qty(1)}, domain.ErrNotFound},
		{"salida de traslado suelta", actor, dto.RecordMovementRequest{StockID: id, Type: "TRANSFER_OUT", Quantity: qty(-5), Reference: "REQ-X"}, domain.ErrValidation},
		{"entrada de traslado suelta", actor, dto.RecordMovementRequest{StockID: id, Type: "TRANSFER_IN", Quantity: qty(5)}, domain.ErrValidation},
		{"transfer_id ajeno", actor, dto.RecordMovementRequest{StockID: id, Type: "ADJUST_DECREASE", Quantity: qty(-5), TransferID: "no-existe"}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Record(f.ctx, tc.actor, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, int64(20), f.stock(t, id).TotalQuantity)
	history, err := f.uc.History(f.ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecord_ReserveLimitsAvailable(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "OPD", 10, 0)

	_, err := f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "RESERVE", Quantity: qty(8)})
	require.NoError(t, err)
	_, err = f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "DISPENSE_EXTERNAL", Quantity: qty(-3)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "UNRESERVE", Quantity: qty(-8)})
	require.NoError(t, err)
	s := f.stock(t, id)
	assert.Equal(t, int64(0), s.ReservedQty)
	assert.Equal(t, int64(10), s.AvailableStock)
}

func TestRecord_ConcurrentWritesKeepChain(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "PHARMACY", 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.Record(f.ctx, actor, dto.RecordMovementRequest{StockID: id, Type: "RECEIVE_EXTERNAL", Quantity: qty(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), f.stock(t, id).TotalQuantity)
	history, err := f.uc.History(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 20)
	for i, h := range history {
		assert.Equal(t, int64(i+1), h.Sequence)
		assert.Equal(t, int64(i), h.BeforeQty)
	}
	report, err := f.uc.Verify(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestMinimumAdjustments(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, "drug-x", "PHARMACY", 100, 50)

	txn, err := f.uc.AdjustMinimum(f.ctx, actor, dto.AdjustMinimumRequest{StockID: id, Delta: 10, ReasonCode: "reorder policy"})
	require.NoError(t, err)
	assert.Equal(t, "MIN_STOCK_INCREASE", txn.Type)
	require.NotNil(t, txn.BeforeMinStock)
	assert.Equal(t, int64(50), *txn.BeforeMinStock)
	assert.Equal(t, int64(60), *txn.AfterMinStock)
	assert.Equal(t, int64(10), *txn.MinStockChange)
	assert.Equal(t, txn.BeforeQty, txn.AfterQty)
	assert.Equal(t, int64(100), txn.AfterQty)
	assert.Nil(t, txn.Quantity)
	assert.Equal(t, "reorder policy", txn.Note)

	txn, err = f.uc.AdjustMinimum(f.ctx, actor, dto.AdjustMinimumRequest{StockID: id, Delta: -15, ReasonCode: "demanda baja"})
	require.NoError(t, err)
	assert.Equal(t, "MIN_STOCK_DECREASE", txn.Type)
	assert.Equal(t, int64(45), *txn.AfterMinStock)

	txn, err = f.uc.AdjustMinimum(f.ctx, actor, dto.AdjustMinimumRequest{StockID: id, Delta: 0, ReasonCode: "revisión"})
	require.NoError(t, err)
	assert.Equal(t, "MIN_STOCK_RESET", txn.Type)
	assert.Equal(t, *txn.BeforeMinStock, *txn.AfterMinStock)

	txn, err = f.uc.SetMinimum(f.ctx, actor, dto.SetMinimumRequest{StockID: id, Target: 30, ReasonCode: "auditoría"})
	require.NoError(t, err)
	assert.Equal(t, "MIN_STOCK_RESET", txn.Type)
	assert.Equal(t, int64(-15), *txn.MinStockChange)
	assert.Equal(t, int64(30), f.stock(t, id).MinimumStock)

	_, err = f.uc.AdjustMinimum(f.ctx, actor, dto.AdjustMinimumRequest{StockID: id, Delta: -31, ReasonCode: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.SetMinimum(f.ctx, actor, dto.SetMinimumRequest{StockID: id, Target: -1, ReasonCode: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.uc.AdjustMinimum(f.ctx, actor, dto.AdjustMinimumRequest{StockID: id, Delta: 1})
	assert.ErrorIs(t, err, domain.ErrValidation, "motivo obligatorio")
	assert.Equal(t, int64(30), f.stock(t, id).MinimumStock)

	report, err := f.uc.Verify(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(30), report.LedgerMinimum)
}

func TestReads(t *testing.T) {
	f := newFixture(t)
	a := f.provision(t, "drug-x", "PHARMACY", 1, 0)
	f.provision(t, "drug-y", "PHARMACY", 1, 0)
	f.provision(t, "drug-x", "OPD", 1, 0)

	s, err := f.uc.GetStockByDrug(f.ctx, "drug-x", "pharmacy")
	require.NoError(t, err)
	assert.Equal(t, a, s.ID)

	_, err = f.uc.GetStockByDrug(f.ctx, "drug-y", "OPD")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.uc.ListStock(f.ctx, "PHARMACY", dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 20, list.Page.Limit)

	list, err = f.uc.ListStock(f.ctx, "", dto.PageRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	_, err = f.uc.History(f.ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCorruptionError(t *testing.T) {
	var err error = &inventory.CorruptionError{StockID: "s1"}
	assert.ErrorIs(t, err, domain.ErrCorruption)
	assert.Equal(t, "corruption", domain.Kind(err))
	assert.Equal(t, "CORRUPTION", dto.ErrorFrom(err).Code)
}
