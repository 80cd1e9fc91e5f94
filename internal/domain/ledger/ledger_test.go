package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func i64(v int64) *int64 { return &v }

func stock(qty, reserved, minimum int64) *entity.Stock {
	s := &entity.Stock{
		ID:                  "s1",
		TotalQuantity:       qty,
		ReservedQty:         reserved,
		MinimumStock:        minimum,
		UnitCost:            decimal.NewFromInt(2),
		InitialQuantity:     qty,
		InitialReserved:     reserved,
		InitialMinimumStock: minimum,
	}
	s.RefreshValue()
	return s
}

func TestEffects_CoverEveryType(t *testing.T) {
	all := []entity.TransactionType{
		entity.TxReceiveExternal, entity.TxDispenseExternal, entity.TxTransferIn, entity.TxTransferOut,
		entity.TxAdjustIncrease, entity.TxAdjustDecrease, entity.TxReserve, entity.TxUnreserve,
		entity.TxMinStockIncrease, entity.TxMinStockDecrease, entity.TxMinStockReset,
		entity.TxDataUpdate, entity.TxPriceUpdate, entity.TxInfoCorrection,
	}
	assert.Len(t, Effects, len(all))
	for _, typ := range all {
		_, ok := ParseType(string(typ))
		assert.True(t, ok, typ)
	}
	_, ok := ParseType("SALE")
	assert.False(t, ok)

	assert.Equal(t, entity.TxMinStockIncrease, MinimumType(5))
	assert.Equal(t, entity.TxMinStockDecrease, MinimumType(-5))
	assert.Equal(t, entity.TxMinStockReset, MinimumType(0))

	legs := 0
	for _, typ := range all {
		if IsTransferLeg(typ) {
			legs++
		}
	}
	assert.Equal(t, 2, legs)
	assert.True(t, IsTransferLeg(entity.TxTransferOut))
	assert.False(t, IsTransferLeg(entity.TxAdjustDecrease))
}

func TestApply(t *testing.T) {
	cases := []struct {
		name    string
		stock   *entity.Stock
		change  Change
		want    entity.StockSnapshot
		wantErr error
	}{
		{"recepción", stock(10, 0, 5), Change{Type: entity.TxReceiveExternal, Quantity: i64(5)}, entity.StockSnapshot{Quantity: 15, Minimum: 5}, nil},
		{"dispensación", stock(10, 0, 5), Change{Type: entity.TxDispenseExternal, Quantity: i64(-4)}, entity.StockSnapshot{Quantity: 6, Minimum: 5}, nil},
		{"dispensación excede disponible", stock(20, 0, 0), Change{Type: entity.TxDispenseExternal, Quantity: i64(-30)}, entity.StockSnapshot{}, domain.ErrInsufficientStock},
		{"reservado limita disponible", stock(20, 15, 0), Change{Type: entity.TxTransferOut, Quantity: i64(-6)}, entity.StockSnapshot{}, domain.ErrInsufficientStock},
		{"signo incorrecto", stock(10, 0, 0), Change{Type: entity.TxReceiveExternal, Quantity: i64(-1)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"cantidad cero", stock(10, 0, 0), Change{Type: entity.TxAdjustIncrease, Quantity: i64(0)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"sin cantidad", stock(10, 0, 0), Change{Type: entity.TxAdjustDecrease}, entity.StockSnapshot{}, domain.ErrValidation},
		{"reserva", stock(10, 0, 0), Change{Type: entity.TxReserve, Quantity: i64(4)}, entity.StockSnapshot{Quantity: 10, Reserved: 4}, nil},
		{"reserva excede disponible", stock(10, 8, 0), Change{Type: entity.TxReserve, Quantity: i64(3)}, entity.StockSnapshot{}, domain.ErrInsufficientStock},
		{"liberación excede reservado", stock(10, 2, 0), Change{Type: entity.TxUnreserve, Quantity: i64(-3)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"mínimo sube", stock(10, 0, 50), Change{Type: entity.TxMinStockIncrease, MinChange: i64(10)}, entity.StockSnapshot{Quantity: 10, Minimum: 60}, nil},
		{"mínimo negativo", stock(10, 0, 5), Change{Type: entity.TxMinStockDecrease, MinChange: i64(-6)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"mínimo con cantidad", stock(10, 0, 5), Change{Type: entity.TxMinStockIncrease, Quantity: i64(1), MinChange: i64(1)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"descriptivo", stock(10, 0, 5), Change{Type: entity.TxDataUpdate}, entity.StockSnapshot{Quantity: 10, Minimum: 5}, nil},
		{"descriptivo con cantidad", stock(10, 0, 5), Change{Type: entity.TxInfoCorrection, Quantity: i64(1)}, entity.StockSnapshot{}, domain.ErrValidation},
		{"tipo desconocido", stock(10, 0, 5), Change{Type: "SALE", Quantity: i64(1)}, entity.StockSnapshot{}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := *tc.stock
			out, err := Apply(tc.stock, tc.change)
			assert.Equal(t, before, *tc.stock, "Apply no modifica el stock")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.After)
			assert.Equal(t, before.Snapshot(), out.Before)
		})
	}
}

func TestApply_Costs(t *testing.T) {
	s := stock(10, 0, 0) // costo 2
	cost := decimal.NewFromInt(5)
	out, err := Apply(s, Change{Type: entity.TxReceiveExternal, Quantity: i64(10), UnitCost: &cost})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.5").Equal(out.StockCost), out.StockCost.String())
	assert.True(t, decimal.NewFromInt(50).Equal(out.TotalCost))

	out.ApplyTo(s, time.Now())
	assert.Equal(t, int64(20), s.TotalQuantity)
	assert.True(t, decimal.NewFromInt(70).Equal(s.TotalValue))

	price := decimal.NewFromInt(4)
	out, err = Apply(s, Change{Type: entity.TxPriceUpdate, UnitCost: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(out.StockCost))
	assert.Equal(t, s.Snapshot(), out.After)

	neg := decimal.NewFromInt(-1)
	_, err = Apply(s, Change{Type: entity.TxReceiveExternal, Quantity: i64(1), UnitCost: &neg})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCostCalculator(t *testing.T) {
	got := CostCalculator(0, decimal.Zero, 10, decimal.NewFromInt(3))
	assert.True(t, decimal.NewFromInt(3).Equal(got))
	assert.True(t, decimal.Zero.Equal(CostCalculator(0, decimal.Zero, 0, decimal.NewFromInt(3))))
}

// chain aplica cambios en orden y devuelve los movimientos como los registraría el ledger.
func chain(t *testing.T, s *entity.Stock, changes ...Change) []*entity.StockTransaction {
	t.Helper()
	var out []*entity.StockTransaction
	for i, c := range changes {
		o, err := Apply(s, c)
		require.NoError(t, err)
		txn := &entity.StockTransaction{
			Sequence:       int64(i + 1),
			Type:           c.Type,
			Quantity:       c.Quantity,
			BeforeQty:      o.Before.Quantity,
			AfterQty:       o.After.Quantity,
			BeforeReserved: o.Before.Reserved,
			AfterReserved:  o.After.Reserved,
		}
		if o.Effect.IsMinimum() {
			b, a := o.Before.Minimum, o.After.Minimum
			txn.BeforeMinStock, txn.AfterMinStock, txn.MinStockChange = &b, &a, c.MinChange
		}
		o.ApplyTo(s, time.Now())
		out = append(out, txn)
	}
	return out
}

func TestReplay_ReproducesStock(t *testing.T) {
	s := stock(100, 0, 50)
	entries := chain(t, s,
		Change{Type: entity.TxTransferOut, Quantity: i64(-20)},
		Change{Type: entity.TxReserve, Quantity: i64(5)},
		Change{Type: entity.TxMinStockIncrease, MinChange: i64(10)},
		Change{Type: entity.TxReceiveExternal, Quantity: i64(7)},
		Change{Type: entity.TxUnreserve, Quantity: i64(-5)},
		Change{Type: entity.TxDataUpdate},
	)
	derived, gaps := Replay(Baseline(s), entries)
	assert.Empty(t, gaps)
	assert.Equal(t, s.Snapshot(), derived)
	assert.Empty(t, Compare(derived, s))
	assert.Equal(t, entity.StockSnapshot{Quantity: 87, Reserved: 0, Minimum: 60}, derived)
}

func TestReplay_DetectsBrokenChain(t *testing.T) {
	s := stock(10, 0, 0)
	entries := chain(t, s,
		Change{Type: entity.TxReceiveExternal, Quantity: i64(5)},
		Change{Type: entity.TxDispenseExternal, Quantity: i64(-3)},
	)
	entries[1].BeforeQty = 14
	_, gaps := Replay(Baseline(s), entries)
	require.Len(t, gaps, 1)
	assert.Equal(t, "beforeQty", gaps[0].Field)
	assert.Equal(t, int64(2), gaps[0].Sequence)
	assert.Contains(t, gaps[0].String(), "#2")
}

func TestCompare_DetectsTamperedCache(t *testing.T) {
	s := stock(10, 0, 0)
	entries := chain(t, s, Change{Type: entity.TxReceiveExternal, Quantity: i64(5)})
	s.TotalQuantity = 99
	derived, gaps := Replay(Baseline(s), entries)
	assert.Empty(t, gaps)
	diff := Compare(derived, s)
	require.Len(t, diff, 1)
	assert.Equal(t, "totalQuantity", diff[0].Field)
	assert.Equal(t, int64(15), diff[0].Expected)
	assert.Equal(t, int64(99), diff[0].Found)
}

func TestReplay_ReconciliationResetsState(t *testing.T) {
	s := stock(10, 0, 0)
	entries := chain(t, s, Change{Type: entity.TxReceiveExternal, Quantity: i64(5)})
	entries[0].BeforeQty = 3 // discrepancia previa
	minimum := int64(4)
	entries = append(entries, &entity.StockTransaction{
		Sequence:      2,
		Type:          entity.TxInfoCorrection,
		Reference:     ReconciliationReference,
		BeforeQty:     15,
		AfterQty:      12,
		AfterMinStock: &minimum,
	})
	derived, gaps := Replay(Baseline(s), entries)
	assert.Empty(t, gaps, "la reconciliación explícita reconoce las discrepancias previas")
	assert.Equal(t, entity.StockSnapshot{Quantity: 12, Minimum: 4}, derived)
}
