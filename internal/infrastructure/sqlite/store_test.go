package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/transfer"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "farmacia.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	require.NoError(t, s.PutDrug(ctx, entity.Drug{ID: "d1", Code: "AMOX500", Name: "Amoxicilina", UnitPrice: decimal.RequireFromString("1.25")}))
	uc := inventory.NewLedgerUseCase(s, s.Stocks(), s.Ledger(), s.Drugs(), nil, nil)
	st, err := uc.ProvisionStock(ctx, "u1", dto.ProvisionStockRequest{DrugID: "d1", Department: "PHARMACY", InitialQuantity: 30, MinimumStock: 5})
	require.NoError(t, err)
	q := int64(-4)
	_, err = uc.Record(ctx, "u1", dto.RecordMovementRequest{StockID: st.ID, Type: "DISPENSE_EXTERNAL", Quantity: &q})
	require.NoError(t, err)

	transfers := transfer.NewUseCase(s, s.Transfers(), s.Drugs(), uc, nil, nil)
	tr, err := transfers.Create(ctx, "u1", dto.CreateTransferRequest{
		RequisitionNumber: "REQ-9", FromDept: "PHARMACY", ToDept: "OPD",
		Items: []dto.CreateTransferItemRequest{{DrugID: "d1", RequestedQty: 3}},
	})
	require.NoError(t, err)
	_, err = transfers.Approve(ctx, "u2", tr.ID, dto.ApproveTransferRequest{
		Items:          []dto.ItemQuantity{{DrugID: "d1", Quantity: 2}},
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	uc = inventory.NewLedgerUseCase(reopened, reopened.Stocks(), reopened.Ledger(), reopened.Drugs(), nil, nil)
	got, err := uc.GetStock(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(26), got.TotalQuantity)
	assert.True(t, decimal.RequireFromString("1.25").Equal(got.UnitCost))

	history, err := uc.History(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(30), history[0].BeforeQty)

	report, err := uc.Verify(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	transfers = transfer.NewUseCase(reopened, reopened.Transfers(), reopened.Drugs(), uc, nil, nil)
	back, err := transfers.GetByRequisition(ctx, "REQ-9")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", back.Status)
	assert.Equal(t, int64(2), *back.Items[0].ApprovedQty)

	// la clave de idempotencia sobrevive al reinicio
	again, err := transfers.Approve(ctx, "u2", tr.ID, dto.ApproveTransferRequest{
		Items:          []dto.ItemQuantity{{DrugID: "d1", Quantity: 2}},
		IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, back.Version, again.Version)
}

func TestOpen_EmptyDatabase(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "vacia.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	snap := s.ExportState()
	assert.Empty(t, snap.Stocks)
	assert.Empty(t, snap.Transfers)
}
