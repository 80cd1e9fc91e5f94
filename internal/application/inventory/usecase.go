package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/ledger"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

const defaultReconcileWorkers = 4

// LedgerUseCase registra movimientos de stock de forma transaccional: bloqueo de fila
// (SELECT FOR UPDATE), validación contra la tabla de efectos, actualización del stock e
// inserción del movimiento en la misma transacción.
type LedgerUseCase struct {
	txRunner   TxRunner
	stockRepo  repository.StockRepository
	ledgerRepo repository.StockTransactionRepository
	drugRepo   repository.DrugRepository
	log        *logger.Logger
	metrics    Metrics
	workers    int
	now        func() time.Time
}

// NewLedgerUseCase construye el caso de uso. log y metrics pueden ser nil.
func NewLedgerUseCase(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
	drugRepo repository.DrugRepository,
	log *logger.Logger,
	metrics Metrics,
) *LedgerUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &LedgerUseCase{
		txRunner:   txRunner,
		stockRepo:  stockRepo,
		ledgerRepo: ledgerRepo,
		drugRepo:   drugRepo,
		log:        log,
		metrics:    metrics,
		workers:    defaultReconcileWorkers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetReconcileWorkers límite de verificaciones concurrentes en ReconcileAll.
func (uc *LedgerUseCase) SetReconcileWorkers(n int) {
	if n > 0 {
		uc.workers = n
	}
}

// Entry movimiento a registrar dentro de una transacción ya abierta.
type Entry struct {
	ActorID    string
	Change     ledger.Change
	Reference  string
	TransferID string
	Note       string
}

// CorruptionError el stock en caché no coincide con su ledger. La fila se pone en
// cuarentena hasta una reconciliación explícita (Resolve).
type CorruptionError struct {
	StockID string
	Gaps    []ledger.Gap
}

func (e *CorruptionError) Error() string {
	parts := make([]string, len(e.Gaps))
	for i, g := range e.Gaps {
		parts[i] = g.String()
	}
	return fmt.Sprintf("%v: stock %s: %s", domain.ErrCorruption, e.StockID, strings.Join(parts, "; "))
}

func (e *CorruptionError) Unwrap() error { return domain.ErrCorruption }

// Record registra un movimiento sobre un stock. Los MIN_STOCK_* solo entran por AdjustMinimum/SetMinimum
// y los TRANSFER_* solo por la entrega de un traslado (RecordInTx).
func (uc *LedgerUseCase) Record(ctx context.Context, actorID string, in dto.RecordMovementRequest) (*dto.StockTransactionResponse, error) {
	t, ok := ledger.ParseType(in.Type)
	if !ok {
		return nil, uc.fail(ctx, "record", domain.Validation("tipo de movimiento desconocido %q", in.Type))
	}
	if ledger.Effects[t].IsMinimum() {
		return nil, uc.fail(ctx, "record", domain.Validation("%s solo se registra mediante el ajuste de mínimo", t))
	}
	if ledger.IsTransferLeg(t) {
		return nil, uc.fail(ctx, "record", domain.Validation("%s solo lo registra la entrega de un traslado", t))
	}
	if strings.TrimSpace(in.TransferID) != "" {
		return nil, uc.fail(ctx, "record", domain.Validation("transfer_id lo asigna el flujo de traslados"))
	}
	if actorID == "" {
		return nil, uc.fail(ctx, "record", domain.ErrMissingActor)
	}
	if in.StockID == "" {
		return nil, uc.fail(ctx, "record", domain.Validation("stock_id requerido"))
	}

	var txn *entity.StockTransaction
	err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
		stock, err := stockRepo.GetForUpdate(ctx, in.StockID)
		if err != nil {
			return err
		}
		txn, err = uc.RecordInTx(ctx, stockRepo, ledgerRepo, stock, Entry{
			ActorID:   actorID,
			Change:    ledger.Change{Type: t, Quantity: in.Quantity, UnitCost: in.UnitCost},
			Reference: in.Reference,
			Note:      in.Note,
		})
		return err
	})
	if err != nil {
		return nil, uc.fail(ctx, "record", err)
	}
	uc.committed(txn)
	return toTransactionResponse(txn), nil
}

// RecordInTx aplica un movimiento usando los repositorios de la transacción del llamador.
// stock debe estar bloqueado por el llamador (GetForUpdate). No hace commit ni registra métricas
// de rechazo: el llamador decide sobre la transacción completa.
func (uc *LedgerUseCase) RecordInTx(
	ctx context.Context,
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
	stock *entity.Stock,
	e Entry,
) (*entity.StockTransaction, error) {
	if e.ActorID == "" {
		return nil, domain.ErrMissingActor
	}
	if stock.Quarantined {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrStockQuarantined, stock.ID, stock.QuarantineReason)
	}
	latest, err := ledgerRepo.Latest(ctx, stock.ID)
	if err != nil {
		return nil, err
	}
	minRef := latest
	if latest != nil && latest.AfterMinStock == nil {
		if minRef, err = ledgerRepo.LatestMinimum(ctx, stock.ID); err != nil {
			return nil, err
		}
	}
	if gaps := continuityGaps(stock, latest, minRef); len(gaps) > 0 {
		return nil, &CorruptionError{StockID: stock.ID, Gaps: gaps}
	}

	out, err := ledger.Apply(stock, e.Change)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	seq := int64(1)
	if latest != nil {
		seq = latest.Sequence + 1
	}
	txn := &entity.StockTransaction{
		ID:             uuid.New().String(),
		StockID:        stock.ID,
		Sequence:       seq,
		ActorID:        e.ActorID,
		Type:           e.Change.Type,
		BeforeQty:      out.Before.Quantity,
		AfterQty:       out.After.Quantity,
		BeforeReserved: out.Before.Reserved,
		AfterReserved:  out.After.Reserved,
		UnitCost:       out.UnitCost,
		TotalCost:      out.TotalCost,
		Reference:      e.Reference,
		TransferID:     e.TransferID,
		Note:           e.Note,
		CreatedAt:      now,
	}
	if out.Effect.AffectsQuantity() {
		q := *e.Change.Quantity
		txn.Quantity = &q
	}
	if out.Effect.IsMinimum() {
		before, after, change := out.Before.Minimum, out.After.Minimum, *e.Change.MinChange
		txn.BeforeMinStock, txn.AfterMinStock, txn.MinStockChange = &before, &after, &change
	}

	out.ApplyTo(stock, now)
	if err := stockRepo.Update(ctx, stock); err != nil {
		return nil, err
	}
	if err := ledgerRepo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// continuityGaps compara el último movimiento (o la línea base) con la fila en caché. El mínimo
// se compara con minRef, el último movimiento que lo registró, o con la línea base si no hay ninguno.
func continuityGaps(s *entity.Stock, latest, minRef *entity.StockTransaction) []ledger.Gap {
	if latest == nil {
		return ledger.Compare(ledger.Baseline(s), s)
	}
	var gaps []ledger.Gap
	if latest.AfterQty != s.TotalQuantity {
		gaps = append(gaps, ledger.Gap{Sequence: latest.Sequence, Field: "afterQty", Expected: latest.AfterQty, Found: s.TotalQuantity})
	}
	if latest.AfterReserved != s.ReservedQty {
		gaps = append(gaps, ledger.Gap{Sequence: latest.Sequence, Field: "afterReserved", Expected: latest.AfterReserved, Found: s.ReservedQty})
	}
	switch {
	case minRef != nil && minRef.AfterMinStock != nil:
		if *minRef.AfterMinStock != s.MinimumStock {
			gaps = append(gaps, ledger.Gap{Sequence: minRef.Sequence, Field: "afterMinStock", Expected: *minRef.AfterMinStock, Found: s.MinimumStock})
		}
	case s.InitialMinimumStock != s.MinimumStock:
		gaps = append(gaps, ledger.Gap{Field: "minimumStock", Expected: s.InitialMinimumStock, Found: s.MinimumStock})
	}
	return gaps
}

// QuarantineOnCorruption pone en cuarentena la fila afectada si err es un CorruptionError.
// Corre en su propia transacción porque la del llamador ya se revirtió.
func (uc *LedgerUseCase) QuarantineOnCorruption(ctx context.Context, err error) bool {
	var ce *CorruptionError
	if !errors.As(err, &ce) {
		return false
	}
	uc.quarantine(ctx, ce.StockID, ce.Error())
	return true
}

func (uc *LedgerUseCase) quarantine(ctx context.Context, stockID, reason string) {
	qctx := context.WithoutCancel(ctx)
	err := uc.txRunner.Run(qctx, func(stockRepo repository.StockRepository, _ repository.StockTransactionRepository) error {
		return stockRepo.SetQuarantine(qctx, stockID, true, reason)
	})
	if err != nil {
		uc.log.Error().Err(err).Str("stock_id", stockID).Msg("no se pudo poner el stock en cuarentena")
		return
	}
	uc.metrics.StockQuarantined()
	uc.log.Error().Str("stock_id", stockID).Str("reason", reason).Msg("stock en cuarentena")
}

// fail registra el rechazo y pone en cuarentena si corresponde.
func (uc *LedgerUseCase) fail(ctx context.Context, op string, err error) error {
	kind := domain.Kind(err)
	uc.metrics.LedgerRejected(kind)
	if uc.QuarantineOnCorruption(ctx, err) {
		return err
	}
	ev := uc.log.Warn()
	if kind == "internal" || kind == "corruption" {
		ev = uc.log.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", kind).Msg("movimiento rechazado")
	return err
}

func (uc *LedgerUseCase) committed(txn *entity.StockTransaction) {
	uc.metrics.LedgerWrite(txn.Type)
	uc.log.Info().
		Str("stock_id", txn.StockID).
		Int64("sequence", txn.Sequence).
		Str("type", string(txn.Type)).
		Str("actor_id", txn.ActorID).
		Int64("after_qty", txn.AfterQty).
		Msg("movimiento registrado")
}

// ProvisionStock crea la fila de stock de un medicamento en un departamento. Si ya existe
// la devuelve sin cambios: hay exactamente una fila por (medicamento, departamento).
func (uc *LedgerUseCase) ProvisionStock(ctx context.Context, actorID string, in dto.ProvisionStockRequest) (*dto.StockResponse, error) {
	if actorID == "" {
		return nil, domain.ErrMissingActor
	}
	dept, err := entity.ParseDepartment(in.Department)
	if err != nil {
		return nil, err
	}
	if in.InitialQuantity < 0 || in.MinimumStock < 0 {
		return nil, domain.Validation("cantidad inicial y mínimo no pueden ser negativos")
	}
	drug, err := uc.drugRepo.GetByID(ctx, in.DrugID)
	if err != nil {
		return nil, err
	}

	var stock *entity.Stock
	err = uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, _ repository.StockTransactionRepository) error {
		existing, err := stockRepo.GetByDrug(ctx, drug.ID, dept)
		if err == nil {
			stock = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		stock = newStock(drug.ID, dept, in.InitialQuantity, in.MinimumStock, drug.UnitPrice, uc.now())
		return stockRepo.Create(ctx, stock)
	})
	if errors.Is(err, domain.ErrDuplicate) {
		stock, err = uc.stockRepo.GetByDrug(ctx, drug.ID, dept)
	}
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("stock_id", stock.ID).Str("drug_id", drug.ID).Str("department", string(dept)).
		Str("actor_id", actorID).Msg("stock aprovisionado")
	return toStockResponse(stock), nil
}

// EnsureStockInTx devuelve la fila (medicamento, departamento) creándola en cero si no existe.
// No bloquea la fila: el llamador la bloquea luego en orden determinista.
func (uc *LedgerUseCase) EnsureStockInTx(
	ctx context.Context,
	stockRepo repository.StockRepository,
	drugID string,
	dept entity.Department,
	unitCost decimal.Decimal,
) (*entity.Stock, error) {
	s, err := stockRepo.GetByDrug(ctx, drugID, dept)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	s = newStock(drugID, dept, 0, 0, unitCost, uc.now())
	if err := stockRepo.Create(ctx, s); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, err
		}
		return stockRepo.GetByDrug(ctx, drugID, dept)
	}
	return s, nil
}

func newStock(drugID string, dept entity.Department, qty, minimum int64, unitCost decimal.Decimal, now time.Time) *entity.Stock {
	s := &entity.Stock{
		ID:                  uuid.New().String(),
		DrugID:              drugID,
		Department:          dept,
		TotalQuantity:       qty,
		MinimumStock:        minimum,
		UnitCost:            unitCost,
		InitialQuantity:     qty,
		InitialMinimumStock: minimum,
		CreatedAt:           now,
		LastUpdated:         now,
	}
	s.RefreshValue()
	return s
}

// GetStock obtiene una fila de stock por ID.
func (uc *LedgerUseCase) GetStock(ctx context.Context, id string) (*dto.StockResponse, error) {
	s, err := uc.stockRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStockResponse(s), nil
}

// GetStockByDrug obtiene el stock de un medicamento en un departamento.
func (uc *LedgerUseCase) GetStockByDrug(ctx context.Context, drugID, department string) (*dto.StockResponse, error) {
	dept, err := entity.ParseDepartment(department)
	if err != nil {
		return nil, err
	}
	s, err := uc.stockRepo.GetByDrug(ctx, drugID, dept)
	if err != nil {
		return nil, err
	}
	return toStockResponse(s), nil
}

// ListStock lista el stock, opcionalmente de un departamento, con paginación.
func (uc *LedgerUseCase) ListStock(ctx context.Context, department string, page dto.PageRequest) (*dto.StockListResponse, error) {
	filter := repository.StockFilter{}
	if department != "" {
		dept, err := entity.ParseDepartment(department)
		if err != nil {
			return nil, err
		}
		filter.Department = dept
	}
	page.DefaultPage()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	list, err := uc.stockRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.StockResponse, 0, len(list))
	for _, s := range list {
		items = append(items, *toStockResponse(s))
	}
	return &dto.StockListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

// History movimientos de un stock en orden de secuencia.
func (uc *LedgerUseCase) History(ctx context.Context, stockID string) ([]dto.StockTransactionResponse, error) {
	if _, err := uc.stockRepo.GetByID(ctx, stockID); err != nil {
		return nil, err
	}
	entries, err := uc.ledgerRepo.ListByStock(ctx, stockID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockTransactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, *toTransactionResponse(e))
	}
	return out, nil
}
