package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
)

const actor = "u-farmacia"

type fakeMetrics struct {
	mu          sync.Mutex
	writes      map[entity.TransactionType]int
	rejected    map[string]int
	quarantined int
	reconciled  map[bool]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		writes:     map[entity.TransactionType]int{},
		rejected:   map[string]int{},
		reconciled: map[bool]int{},
	}
}

func (m *fakeMetrics) LedgerWrite(t entity.TransactionType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[t]++
}

func (m *fakeMetrics) LedgerRejected(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[kind]++
}

func (m *fakeMetrics) StockQuarantined() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quarantined++
}

func (m *fakeMetrics) Reconciled(consistent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciled[consistent]++
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	uc      *inventory.LedgerUseCase
	metrics *fakeMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	m := newFakeMetrics()
	f := &fixture{
		ctx:     context.Background(),
		store:   store,
		uc:      inventory.NewLedgerUseCase(store, store.Stocks(), store.Ledger(), store.Drugs(), nil, m),
		metrics: m,
	}
	f.drug(t, "drug-x", "AMOX500", "Amoxicilina 500mg", "1.20")
	f.drug(t, "drug-y", "IBU400", "Ibuprofeno 400mg", "0.50")
	return f
}

func (f *fixture) drug(t *testing.T, id, code, name, price string) {
	t.Helper()
	require.NoError(t, f.store.PutDrug(f.ctx, entity.Drug{
		ID:        id,
		Code:      code,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
	}))
}

func (f *fixture) provision(t *testing.T, drugID, dept string, qty, minimum int64) string {
	t.Helper()
	s, err := f.uc.ProvisionStock(f.ctx, actor, dto.ProvisionStockRequest{
		DrugID:          drugID,
		Department:      dept,
		InitialQuantity: qty,
		MinimumStock:    minimum,
	})
	require.NoError(t, err)
	return s.ID
}

func (f *fixture) stock(t *testing.T, id string) *dto.StockResponse {
	t.Helper()
	s, err := f.uc.GetStock(f.ctx, id)
	require.NoError(t, err)
	return s
}

func qty(v int64) *int64 { return &v }
