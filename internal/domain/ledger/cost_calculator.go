package ledger

import "github.com/shopspring/decimal"

// CostCalculator costo promedio ponderado tras una entrada de unidades.
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
func CostCalculator(stockActual int64, costoActual decimal.Decimal, cantEntrada int64, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual + cantEntrada
	if sum <= 0 {
		return decimal.Zero
	}
	num := decimal.NewFromInt(stockActual).Mul(costoActual).Add(decimal.NewFromInt(cantEntrada).Mul(costoEntrada))
	return num.Div(decimal.NewFromInt(sum))
}
