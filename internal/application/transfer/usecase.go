package transfer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/ledger"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// UseCase flujo de traslados PENDING -> APPROVED -> PREPARED -> DELIVERED, con CANCELLED
// desde cualquier estado no terminal. Cada transición bloquea la cabecera, verifica el estado
// y escribe condicionada a la versión leída.
type UseCase struct {
	txRunner     TxRunner
	transferRepo repository.TransferRepository
	drugRepo     repository.DrugRepository
	ledger       LedgerWriter
	log          *logger.Logger
	metrics      Metrics
	now          func() time.Time
}

// NewUseCase construye el caso de uso. log y metrics pueden ser nil.
func NewUseCase(
	txRunner TxRunner,
	transferRepo repository.TransferRepository,
	drugRepo repository.DrugRepository,
	ledgerWriter LedgerWriter,
	log *logger.Logger,
	metrics Metrics,
) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &UseCase{
		txRunner:     txRunner,
		transferRepo: transferRepo,
		drugRepo:     drugRepo,
		ledger:       ledgerWriter,
		log:          log,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create registra una requisición en PENDING. El precio unitario de cada ítem se copia del
// catálogo. Sin número de requisición se genera uno REQ-YYYYMMDD-XXXXXX.
func (uc *UseCase) Create(ctx context.Context, actorID string, in dto.CreateTransferRequest) (*dto.TransferResponse, error) {
	from, err := entity.ParseDepartment(in.FromDept)
	if err != nil {
		return nil, uc.fail(ctx, "create", "", err)
	}
	to, err := entity.ParseDepartment(in.ToDept)
	if err != nil {
		return nil, uc.fail(ctx, "create", "", err)
	}

	id := uuid.New().String()
	items := make([]*entity.TransferItem, 0, len(in.Items))
	for _, line := range in.Items {
		if line.RequestedQty <= 0 {
			return nil, uc.fail(ctx, "create", "", domain.Validation("cantidad solicitada debe ser mayor a cero (medicamento %s)", line.DrugID))
		}
		drug, err := uc.drugRepo.GetByID(ctx, line.DrugID)
		if err != nil {
			return nil, uc.fail(ctx, "create", "", fmt.Errorf("medicamento %s: %w", line.DrugID, err))
		}
		it, err := entity.NewTransferItem(uuid.New().String(), id, drug.ID, line.RequestedQty, drug.UnitPrice)
		if err != nil {
			return nil, uc.fail(ctx, "create", "", err)
		}
		items = append(items, it)
	}

	now := uc.now()
	number := strings.TrimSpace(in.RequisitionNumber)
	if number == "" {
		number = NewRequisitionNumber(now)
	}
	t, err := entity.NewTransfer(id, number, from, to, actorID, in.Purpose, in.Notes, items, now)
	if err != nil {
		return nil, uc.fail(ctx, "create", "", err)
	}

	err = uc.txRunner.RunTransfer(ctx, func(_ repository.StockRepository, _ repository.StockTransactionRepository, transferRepo repository.TransferRepository) error {
		return transferRepo.Create(ctx, t)
	})
	if err != nil {
		return nil, uc.fail(ctx, "create", id, err)
	}
	uc.metrics.Transition(entity.TransferPending)
	uc.log.Info().Str("transfer_id", t.ID).Str("requisition", t.RequisitionNumber).
		Str("from", string(from)).Str("to", string(to)).Int("items", t.TotalItems).
		Str("actor_id", actorID).Msg("traslado creado")
	return toTransferResponse(t), nil
}

// NewRequisitionNumber genera un número REQ-YYYYMMDD-XXXXXX.
func NewRequisitionNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return fmt.Sprintf("REQ-%s-%s", now.Format("20060102"), suffix)
}

// Approve PENDING -> APPROVED. Cada ítem debe recibir exactamente una cantidad aprobada.
func (uc *UseCase) Approve(ctx context.Context, actorID, id string, in dto.ApproveTransferRequest) (*dto.TransferResponse, error) {
	return uc.transition(ctx, id, entity.TransferApproved, in.IdempotencyKey, func(t *entity.Transfer, _ repository.StockRepository, _ repository.StockTransactionRepository) error {
		approved, err := quantities(t, in.Items)
		if err != nil {
			return err
		}
		return t.Approve(actorID, approved, in.IdempotencyKey, uc.now())
	})
}

// Prepare APPROVED -> PREPARED con cantidades despachadas y lotes.
func (uc *UseCase) Prepare(ctx context.Context, actorID, id string, in dto.PrepareTransferRequest) (*dto.TransferResponse, error) {
	return uc.transition(ctx, id, entity.TransferPrepared, in.IdempotencyKey, func(t *entity.Transfer, _ repository.StockRepository, _ repository.StockTransactionRepository) error {
		lines := make(map[string]entity.DispenseLine, len(in.Items))
		for _, l := range in.Items {
			it, err := resolveItem(t, l.ItemID, l.DrugID)
			if err != nil {
				return err
			}
			if _, dup := lines[it.ID]; dup {
				return domain.Validation("ítem %s indicado más de una vez", it.ID)
			}
			line := entity.DispenseLine{Qty: l.Quantity}
			if l.LotNumber != "" || l.ExpiryDate != nil {
				b := &entity.Batch{LotNumber: l.LotNumber, Manufacturer: l.Manufacturer}
				if l.ExpiryDate != nil {
					b.ExpiryDate = *l.ExpiryDate
				}
				line.Batch = b
			}
			lines[it.ID] = line
		}
		return t.Prepare(actorID, lines, in.IdempotencyKey, uc.now())
	})
}

// Deliver PREPARED -> DELIVERED. En la misma transacción registra, por cada ítem despachado,
// TRANSFER_OUT en el origen y TRANSFER_IN en el destino con la referencia de la requisición.
func (uc *UseCase) Deliver(ctx context.Context, actorID, id string, in dto.DeliverTransferRequest) (*dto.TransferResponse, error) {
	return uc.transition(ctx, id, entity.TransferDelivered, in.IdempotencyKey, func(t *entity.Transfer, stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
		received, err := quantities(t, in.Items)
		if err != nil {
			return err
		}
		if err := t.Deliver(actorID, received, in.IdempotencyKey, uc.now()); err != nil {
			return err
		}
		return uc.moveStock(ctx, t, actorID, stockRepo, ledgerRepo)
	})
}

// Cancel cualquier estado no terminal -> CANCELLED, sin efecto en stock.
func (uc *UseCase) Cancel(ctx context.Context, actorID, id string, in dto.CancelTransferRequest) (*dto.TransferResponse, error) {
	return uc.transition(ctx, id, entity.TransferCancelled, in.IdempotencyKey, func(t *entity.Transfer, _ repository.StockRepository, _ repository.StockTransactionRepository) error {
		return t.Cancel(actorID, strings.TrimSpace(in.Reason), in.IdempotencyKey, uc.now())
	})
}

type transitionFunc func(t *entity.Transfer, stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error

// transition bloquea la cabecera, aplica fn sobre una copia y escribe condicionado a la versión.
// Si la etapa ya se aplicó con la misma clave de idempotencia devuelve el traslado sin escribir.
func (uc *UseCase) transition(ctx context.Context, id string, to entity.TransferStatus, key string, fn transitionFunc) (*dto.TransferResponse, error) {
	var (
		result   *entity.Transfer
		replayed bool
		written  []*entity.StockTransaction
	)
	op := strings.ToLower(string(to))
	err := uc.txRunner.RunTransfer(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository, transferRepo repository.TransferRepository) error {
		replayed, written = false, nil
		current, err := transferRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.AppliedWith(to, key) {
			result, replayed = current, true
			return nil
		}
		next := current.Clone()
		if err := fn(next, stockRepo, ledgerRepo); err != nil {
			return err
		}
		if err := transferRepo.Update(ctx, next, current.Version); err != nil {
			return err
		}
		if to == entity.TransferDelivered {
			written, err = ledgerRepo.ListByTransfer(ctx, next.ID)
			if err != nil {
				return err
			}
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, uc.fail(ctx, op, id, err)
	}
	if replayed {
		uc.log.Info().Str("transfer_id", id).Str("status", string(to)).Str("idempotency_key", key).Msg("transición ya aplicada")
		return toTransferResponse(result), nil
	}
	for _, w := range written {
		uc.metrics.LedgerWrite(w.Type)
	}
	uc.metrics.Transition(to)
	uc.log.Info().Str("transfer_id", result.ID).Str("requisition", result.RequisitionNumber).
		Str("status", string(result.Status)).Int64("version", result.Version).
		Str("total_value", result.TotalValue.String()).Msg("traslado actualizado")
	return toTransferResponse(result), nil
}

type leg struct {
	item  *entity.TransferItem
	qty   int64
	src   string
	dst   string
	recvd int64
}

// moveStock registra los pares TRANSFER_OUT/TRANSFER_IN. Las filas de stock se bloquean en
// orden ascendente de ID para que dos entregas concurrentes no se bloqueen mutuamente.
func (uc *UseCase) moveStock(
	ctx context.Context,
	t *entity.Transfer,
	actorID string,
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
) error {
	var legs []leg
	ids := make(map[string]struct{})
	for _, it := range t.Items {
		qty, _ := it.DispensedQty()
		if qty == 0 {
			continue
		}
		src, err := stockRepo.GetByDrug(ctx, it.DrugID, t.FromDept)
		if err != nil {
			return fmt.Errorf("stock de origen %s/%s: %w", it.DrugID, t.FromDept, err)
		}
		dst, err := uc.ledger.EnsureStockInTx(ctx, stockRepo, it.DrugID, t.ToDept, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("stock de destino %s/%s: %w", it.DrugID, t.ToDept, err)
		}
		recvd, _ := it.ReceivedQty()
		legs = append(legs, leg{item: it, qty: qty, src: src.ID, dst: dst.ID, recvd: recvd})
		ids[src.ID], ids[dst.ID] = struct{}{}, struct{}{}
	}

	order := make([]string, 0, len(ids))
	for id := range ids {
		order = append(order, id)
	}
	sort.Strings(order)
	locked := make(map[string]*entity.Stock, len(order))
	for _, id := range order {
		s, err := stockRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		locked[id] = s
	}

	for _, l := range legs {
		cost := l.item.UnitPrice
		out, in := -l.qty, l.qty
		note := ""
		if l.recvd < l.qty {
			note = fmt.Sprintf("recibido %d de %d despachado", l.recvd, l.qty)
		}
		if _, err := uc.ledger.RecordInTx(ctx, stockRepo, ledgerRepo, locked[l.src], inventory.Entry{
			ActorID:    actorID,
			Change:     ledger.Change{Type: entity.TxTransferOut, Quantity: &out, UnitCost: &cost},
			Reference:  t.RequisitionNumber,
			TransferID: t.ID,
			Note:       note,
		}); err != nil {
			return err
		}
		if _, err := uc.ledger.RecordInTx(ctx, stockRepo, ledgerRepo, locked[l.dst], inventory.Entry{
			ActorID:    actorID,
			Change:     ledger.Change{Type: entity.TxTransferIn, Quantity: &in, UnitCost: &cost},
			Reference:  t.RequisitionNumber,
			TransferID: t.ID,
			Note:       note,
		}); err != nil {
			return err
		}
	}
	return nil
}

// quantities traduce las líneas del request a cantidades por ID de ítem.
func quantities(t *entity.Transfer, lines []dto.ItemQuantity) (map[string]int64, error) {
	out := make(map[string]int64, len(lines))
	for _, l := range lines {
		it, err := resolveItem(t, l.ItemID, l.DrugID)
		if err != nil {
			return nil, err
		}
		if _, dup := out[it.ID]; dup {
			return nil, domain.Validation("ítem %s indicado más de una vez", it.ID)
		}
		out[it.ID] = l.Quantity
	}
	return out, nil
}

func resolveItem(t *entity.Transfer, itemID, drugID string) (*entity.TransferItem, error) {
	switch {
	case itemID != "":
		if it, ok := t.Item(itemID); ok {
			return it, nil
		}
		return nil, fmt.Errorf("%w: %s en %s", domain.ErrTransferItemAbsent, itemID, t.RequisitionNumber)
	case drugID != "":
		if it, ok := t.ItemByDrug(drugID); ok {
			return it, nil
		}
		return nil, fmt.Errorf("%w: medicamento %s en %s", domain.ErrTransferItemAbsent, drugID, t.RequisitionNumber)
	}
	return nil, domain.Validation("cada línea requiere item_id o drug_id")
}

func (uc *UseCase) fail(ctx context.Context, op, id string, err error) error {
	kind := domain.Kind(err)
	uc.metrics.TransitionRejected(kind)
	uc.ledger.QuarantineOnCorruption(ctx, err)
	ev := uc.log.Warn()
	if kind == "internal" || kind == "corruption" {
		ev = uc.log.Error()
	}
	ev.Err(err).Str("op", op).Str("transfer_id", id).Str("kind", kind).Msg("operación de traslado rechazada")
	return err
}

// Get obtiene un traslado por ID.
func (uc *UseCase) Get(ctx context.Context, id string) (*dto.TransferResponse, error) {
	t, err := uc.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTransferResponse(t), nil
}

// GetByRequisition obtiene un traslado por número de requisición.
func (uc *UseCase) GetByRequisition(ctx context.Context, number string) (*dto.TransferResponse, error) {
	t, err := uc.transferRepo.GetByRequisition(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	return toTransferResponse(t), nil
}

// List lista traslados filtrando por estado y departamentos, con paginación.
func (uc *UseCase) List(ctx context.Context, in dto.ListTransfersRequest) (*dto.TransferListResponse, error) {
	filter := repository.TransferFilter{}
	if in.Status != "" {
		st := entity.TransferStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
		if !st.Valid() {
			return nil, domain.Validation("estado desconocido %q", in.Status)
		}
		filter.Status = st
	}
	if in.FromDept != "" {
		d, err := entity.ParseDepartment(in.FromDept)
		if err != nil {
			return nil, err
		}
		filter.FromDept = d
	}
	if in.ToDept != "" {
		d, err := entity.ParseDepartment(in.ToDept)
		if err != nil {
			return nil, err
		}
		filter.ToDept = d
	}
	page := in.PageRequest
	page.DefaultPage()
	filter.Limit, filter.Offset = page.Limit, page.Offset

	list, err := uc.transferRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TransferResponse, 0, len(list))
	for _, t := range list {
		items = append(items, *toTransferResponse(t))
	}
	return &dto.TransferListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}
