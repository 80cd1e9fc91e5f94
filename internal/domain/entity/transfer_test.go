package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

var now = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newItem(t *testing.T, id, drug string, qty int64, price string) *TransferItem {
	t.Helper()
	it, err := NewTransferItem(id, "", drug, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return it
}

func newTransfer(t *testing.T) *Transfer {
	t.Helper()
	tr, err := NewTransfer("t1", "REQ001", DepartmentPharmacy, DepartmentOPD, "u-req", "reposición", "",
		[]*TransferItem{newItem(t, "i1", "d1", 30, "2.50"), newItem(t, "i2", "d2", 10, "1.00")}, now)
	require.NoError(t, err)
	return tr
}

func batch(lot string) *Batch {
	return &Batch{LotNumber: lot, ExpiryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Manufacturer: "Lab"}
}

func TestNewTransferItem_Validation(t *testing.T) {
	_, err := NewTransferItem("i", "t", "", 1, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewTransferItem("i", "t", "d", 0, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewTransferItem("i", "t", "d", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransferItem_StageChain(t *testing.T) {
	it := newItem(t, "i1", "d1", 30, "2")
	assert.Equal(t, StageRequested, it.Stage())
	_, ok := it.ApprovedQty()
	assert.False(t, ok, "la cantidad aprobada no existe antes de aprobar")

	// no se puede despachar ni recibir antes de aprobar
	assert.ErrorIs(t, it.Dispense(1, batch("L1")), domain.ErrInvalidTransition)
	assert.ErrorIs(t, it.Receive(1), domain.ErrInvalidTransition)

	assert.ErrorIs(t, it.Approve(31), domain.ErrQuantityChain)
	assert.Equal(t, StageRequested, it.Stage())
	require.NoError(t, it.Approve(20))
	q, ok := it.ApprovedQty()
	assert.True(t, ok)
	assert.Equal(t, int64(20), q)
	assert.True(t, decimal.NewFromInt(40).Equal(it.TotalValue))

	assert.ErrorIs(t, it.Approve(10), domain.ErrInvalidTransition)
	assert.ErrorIs(t, it.Dispense(21, batch("L1")), domain.ErrQuantityChain)
	require.NoError(t, it.Dispense(18, batch(" L1 ")))
	assert.Equal(t, "L1", it.Batch().LotNumber)

	assert.ErrorIs(t, it.Receive(19), domain.ErrQuantityChain)
	require.NoError(t, it.Receive(15))
	r, ok := it.ReceivedQty()
	assert.True(t, ok)
	assert.Equal(t, int64(15), r)
	assert.Equal(t, StageReceived, it.Stage())
	assert.True(t, decimal.NewFromInt(30).Equal(it.TotalValue))
}

func TestTransferItem_DispenseRequiresBatch(t *testing.T) {
	cases := []struct {
		name  string
		batch *Batch
	}{
		{"sin lote", nil},
		{"lote vacío", &Batch{ExpiryDate: now}},
		{"sin vencimiento", &Batch{LotNumber: "L1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := newItem(t, "i1", "d1", 10, "1")
			require.NoError(t, it.Approve(10))
			err := it.Dispense(5, tc.batch)
			assert.ErrorIs(t, err, domain.ErrMissingBatch)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, StageApproved, it.Stage())
		})
	}

	t.Run("cero unidades sin lote", func(t *testing.T) {
		it := newItem(t, "i1", "d1", 10, "1")
		require.NoError(t, it.Approve(0))
		require.NoError(t, it.Dispense(0, nil))
		assert.Nil(t, it.Batch())
	})
}

func TestRestoreTransferItem(t *testing.T) {
	it := newItem(t, "i1", "d1", 10, "1")
	require.NoError(t, it.Approve(8))
	require.NoError(t, it.Dispense(8, batch("L9")))

	restored, err := RestoreTransferItem(it.State())
	require.NoError(t, err)
	assert.Equal(t, it.State(), restored.State())

	st := it.State()
	st.ReceivedQty = &st.RequestedQty // cantidad de una etapa no alcanzada
	_, err = RestoreTransferItem(st)
	assert.ErrorIs(t, err, domain.ErrCorruption)

	st = it.State()
	over := int64(9)
	st.DispensedQty = &over // despachado > aprobado
	_, err = RestoreTransferItem(st)
	assert.ErrorIs(t, err, domain.ErrCorruption)
}

func TestNewTransfer_Validation(t *testing.T) {
	items := func() []*TransferItem { return []*TransferItem{newItem(t, "i1", "d1", 1, "1")} }

	_, err := NewTransfer("t", "R", DepartmentPharmacy, DepartmentOPD, "", "", "", items(), now)
	assert.ErrorIs(t, err, domain.ErrMissingActor)
	_, err = NewTransfer("t", "R", DepartmentPharmacy, DepartmentPharmacy, "u", "", "", items(), now)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewTransfer("t", "R", DepartmentPharmacy, DepartmentOPD, "u", "", "", nil, now)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewTransfer("t", "R", DepartmentPharmacy, Department("ER"), "u", "", "", items(), now)
	assert.ErrorIs(t, err, domain.ErrValidation)
	dup := []*TransferItem{newItem(t, "i1", "d1", 1, "1"), newItem(t, "i2", "d1", 2, "1")}
	_, err = NewTransfer("t", "R", DepartmentPharmacy, DepartmentOPD, "u", "", "", dup, now)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransfer_FullFlow(t *testing.T) {
	tr := newTransfer(t)
	assert.Equal(t, TransferPending, tr.Status)
	assert.Equal(t, 2, tr.TotalItems)
	assert.True(t, decimal.RequireFromString("85").Equal(tr.TotalValue)) // 30*2.5 + 10*1

	require.NoError(t, tr.Approve("u-app", map[string]int64{"i1": 20, "i2": 10}, "k1", now))
	assert.Equal(t, TransferApproved, tr.Status)
	assert.Equal(t, "u-app", tr.ApproverID)
	assert.True(t, tr.AppliedWith(TransferApproved, "k1"))
	assert.False(t, tr.AppliedWith(TransferApproved, "otra"))

	require.NoError(t, tr.Prepare("u-disp", map[string]DispenseLine{
		"i1": {Qty: 20, Batch: batch("L1")},
		"i2": {Qty: 0},
	}, "", now))
	assert.Equal(t, TransferPrepared, tr.Status)

	require.NoError(t, tr.Deliver("u-rec", map[string]int64{"i1": 20, "i2": 0}, "", now))
	assert.Equal(t, TransferDelivered, tr.Status)
	assert.True(t, tr.Status.IsTerminal())
	assert.True(t, decimal.NewFromInt(50).Equal(tr.TotalValue))

	err := tr.Cancel("u", "tarde", "", now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTransfer_ApproveRejectsAllOrNothing(t *testing.T) {
	tr := newTransfer(t)
	err := tr.Approve("u", map[string]int64{"i1": 10, "i2": 11}, "", now)
	assert.ErrorIs(t, err, domain.ErrQuantityChain)
	assert.Equal(t, TransferPending, tr.Status)
	for _, it := range tr.Items {
		assert.Equal(t, StageRequested, it.Stage(), "ningún ítem cambia si uno falla")
	}

	err = tr.Approve("u", map[string]int64{"i1": 10}, "", now)
	assert.ErrorIs(t, err, domain.ErrValidation, "faltan ítems")
	err = tr.Approve("u", map[string]int64{"i1": 10, "i2": 1, "x": 1}, "", now)
	assert.ErrorIs(t, err, domain.ErrValidation, "ítems de más")
	err = tr.Approve("", map[string]int64{"i1": 10, "i2": 1}, "", now)
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestTransfer_InvalidTransitions(t *testing.T) {
	tr := newTransfer(t)
	err := tr.Deliver("u", map[string]int64{"i1": 0, "i2": 0}, "", now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = tr.Prepare("u", map[string]DispenseLine{"i1": {}, "i2": {}}, "", now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, TransferPending, tr.Status)
}

func TestTransfer_CancelFromEveryNonTerminalState(t *testing.T) {
	steps := []func(*Transfer) error{
		func(*Transfer) error { return nil },
		func(tr *Transfer) error { return tr.Approve("u", map[string]int64{"i1": 1, "i2": 1}, "", now) },
		func(tr *Transfer) error {
			return tr.Prepare("u", map[string]DispenseLine{"i1": {Qty: 1, Batch: batch("L")}, "i2": {Qty: 0}}, "", now)
		},
	}
	for n := range steps {
		tr := newTransfer(t)
		for _, step := range steps[:n+1] {
			require.NoError(t, step(tr))
		}
		require.NoError(t, tr.Cancel("u-c", "ya no se necesita", "kc", now))
		assert.Equal(t, TransferCancelled, tr.Status)
		assert.Equal(t, "u-c", tr.CancelledBy)
		assert.NotNil(t, tr.CancelledAt)
		assert.ErrorIs(t, tr.Cancel("u-c", "", "", now), domain.ErrInvalidTransition)
	}
}

func TestTransfer_CloneIsDeep(t *testing.T) {
	tr := newTransfer(t)
	c := tr.Clone()
	require.NoError(t, c.Approve("u", map[string]int64{"i1": 1, "i2": 1}, "k", now))

	assert.Equal(t, TransferPending, tr.Status)
	assert.Equal(t, StageRequested, tr.Items[0].Stage())
	assert.Empty(t, tr.IdempotencyKeys)
	assert.Nil(t, tr.ApprovedAt)
}

func TestTransferStatus(t *testing.T) {
	assert.True(t, TransferPending.CanTransitionTo(TransferApproved))
	assert.True(t, TransferPending.CanTransitionTo(TransferCancelled))
	assert.False(t, TransferPending.CanTransitionTo(TransferPrepared))
	assert.False(t, TransferDelivered.CanTransitionTo(TransferCancelled))
	assert.True(t, TransferCancelled.IsTerminal())
	assert.False(t, TransferStatus("LOST").Valid())
}

func TestParseDepartment(t *testing.T) {
	d, err := ParseDepartment(" opd ")
	require.NoError(t, err)
	assert.Equal(t, DepartmentOPD, d)
	_, err = ParseDepartment("ER")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStock_Derived(t *testing.T) {
	s := &Stock{TotalQuantity: 60, ReservedQty: 10, MinimumStock: 50, UnitCost: decimal.RequireFromString("1.5")}
	assert.Equal(t, int64(50), s.AvailableStock())
	assert.True(t, s.IsLowStock())
	s.RefreshValue()
	assert.True(t, decimal.NewFromInt(90).Equal(s.TotalValue))
}
