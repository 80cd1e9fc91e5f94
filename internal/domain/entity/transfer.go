package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// TransferStatus estado del flujo de traslado entre departamentos.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferPrepared  TransferStatus = "PREPARED"
	TransferDelivered TransferStatus = "DELIVERED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// transitions tabla única de transiciones permitidas.
var transitions = map[TransferStatus][]TransferStatus{
	TransferPending:  {TransferApproved, TransferCancelled},
	TransferApproved: {TransferPrepared, TransferCancelled},
	TransferPrepared: {TransferDelivered, TransferCancelled},
}

// CanTransitionTo indica si la transición from -> to está permitida.
func (s TransferStatus) CanTransitionTo(to TransferStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal DELIVERED y CANCELLED no admiten más transiciones.
func (s TransferStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid indica si el estado pertenece al conjunto cerrado.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferApproved, TransferPrepared, TransferDelivered, TransferCancelled:
		return true
	}
	return false
}

// Transfer requisición de traslado de medicamentos entre departamentos.
// Solo cambia por transiciones del flujo; la cancelación es un estado terminal, nunca un borrado.
type Transfer struct {
	ID                string
	RequisitionNumber string
	FromDept          Department
	ToDept            Department
	RequesterID       string
	ApproverID        string
	DispenserID       string
	ReceiverID        string
	CancelledBy       string
	Status            TransferStatus
	Purpose           string
	Notes             string
	CancelReason      string
	TotalItems        int
	TotalValue        decimal.Decimal
	Items             []*TransferItem

	// IdempotencyKeys clave de la llamada que aplicó cada etapa.
	IdempotencyKeys map[TransferStatus]string
	Version         int64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ApprovedAt  *time.Time
	PreparedAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// NewTransfer crea un traslado en estado PENDING.
func NewTransfer(id, number string, from, to Department, requesterID, purpose, notes string, items []*TransferItem, now time.Time) (*Transfer, error) {
	if requesterID == "" {
		return nil, domain.ErrMissingActor
	}
	if !from.Valid() || !to.Valid() {
		return nil, domain.Validation("departamento inválido")
	}
	if from == to {
		return nil, domain.Validation("origen y destino deben ser distintos")
	}
	if strings.TrimSpace(number) == "" {
		return nil, domain.Validation("número de requisición requerido")
	}
	if len(items) == 0 {
		return nil, domain.Validation("el traslado requiere al menos un ítem")
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.DrugID] {
			return nil, domain.Validation("medicamento %s repetido en el traslado", it.DrugID)
		}
		seen[it.DrugID] = true
		it.TransferID = id
	}
	t := &Transfer{
		ID:                id,
		RequisitionNumber: strings.TrimSpace(number),
		FromDept:          from,
		ToDept:            to,
		RequesterID:       requesterID,
		Status:            TransferPending,
		Purpose:           purpose,
		Notes:             notes,
		Items:             items,
		IdempotencyKeys:   map[TransferStatus]string{},
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	t.RecomputeTotals()
	return t, nil
}

// Item busca un ítem por ID.
func (t *Transfer) Item(id string) (*TransferItem, bool) {
	for _, it := range t.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// ItemByDrug busca un ítem por medicamento (único dentro del traslado).
func (t *Transfer) ItemByDrug(drugID string) (*TransferItem, bool) {
	for _, it := range t.Items {
		if it.DrugID == drugID {
			return it, true
		}
	}
	return nil, false
}

// RecomputeTotals recalcula TotalItems y TotalValue como suma de los ítems.
func (t *Transfer) RecomputeTotals() {
	total := decimal.Zero
	for _, it := range t.Items {
		total = total.Add(it.TotalValue)
	}
	t.TotalItems = len(t.Items)
	t.TotalValue = total
}

// AppliedWith indica si la etapa ya fue aplicada con la misma clave de idempotencia.
func (t *Transfer) AppliedWith(stage TransferStatus, key string) bool {
	if key == "" || t.IdempotencyKeys == nil {
		return false
	}
	return t.IdempotencyKeys[stage] == key
}

// Clone copia profunda; las transiciones se aplican sobre copias para ser todo-o-nada.
func (t *Transfer) Clone() *Transfer {
	c := *t
	c.Items = make([]*TransferItem, len(t.Items))
	for i, it := range t.Items {
		c.Items[i] = it.clone()
	}
	c.IdempotencyKeys = make(map[TransferStatus]string, len(t.IdempotencyKeys))
	for k, v := range t.IdempotencyKeys {
		c.IdempotencyKeys[k] = v
	}
	c.ApprovedAt = cloneTime(t.ApprovedAt)
	c.PreparedAt = cloneTime(t.PreparedAt)
	c.DeliveredAt = cloneTime(t.DeliveredAt)
	c.CancelledAt = cloneTime(t.CancelledAt)
	return &c
}

// Approve PENDING -> APPROVED con la cantidad aprobada de cada ítem.
func (t *Transfer) Approve(approverID string, approved map[string]int64, key string, now time.Time) error {
	if err := t.guard(approverID, TransferApproved); err != nil {
		return err
	}
	if err := coversAll(t, approved); err != nil {
		return err
	}
	return t.apply(func(it *TransferItem) error { return it.Approve(approved[it.ID]) }, func() {
		t.ApproverID = approverID
		t.ApprovedAt = &now
	}, TransferApproved, key, now)
}

// DispenseLine cantidad despachada y lote de un ítem.
type DispenseLine struct {
	Qty   int64
	Batch *Batch
}

// Prepare APPROVED -> PREPARED con cantidades despachadas y lotes.
func (t *Transfer) Prepare(dispenserID string, lines map[string]DispenseLine, key string, now time.Time) error {
	if err := t.guard(dispenserID, TransferPrepared); err != nil {
		return err
	}
	if err := coversAll(t, lines); err != nil {
		return err
	}
	return t.apply(func(it *TransferItem) error {
		l := lines[it.ID]
		return it.Dispense(l.Qty, l.Batch)
	}, func() {
		t.DispenserID = dispenserID
		t.PreparedAt = &now
	}, TransferPrepared, key, now)
}

// Deliver PREPARED -> DELIVERED con cantidades recibidas. Los movimientos de stock
// los registra el caso de uso dentro de la misma transacción.
func (t *Transfer) Deliver(receiverID string, received map[string]int64, key string, now time.Time) error {
	if err := t.guard(receiverID, TransferDelivered); err != nil {
		return err
	}
	if err := coversAll(t, received); err != nil {
		return err
	}
	return t.apply(func(it *TransferItem) error { return it.Receive(received[it.ID]) }, func() {
		t.ReceiverID = receiverID
		t.DeliveredAt = &now
	}, TransferDelivered, key, now)
}

// Cancel cualquier estado no terminal -> CANCELLED. Sin efecto en stock.
func (t *Transfer) Cancel(actorID, reason, key string, now time.Time) error {
	if err := t.guard(actorID, TransferCancelled); err != nil {
		return err
	}
	t.Status = TransferCancelled
	t.CancelledBy = actorID
	t.CancelReason = reason
	t.CancelledAt = &now
	t.markKey(TransferCancelled, key)
	t.UpdatedAt = now
	return nil
}

func (t *Transfer) guard(actorID string, to TransferStatus) error {
	if actorID == "" {
		return domain.ErrMissingActor
	}
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s (traslado %s)", domain.ErrInvalidTransition, t.Status, to, t.RequisitionNumber)
	}
	return nil
}

// coversAll exige exactamente una entrada por ítem del traslado.
func coversAll[V any](t *Transfer, byItem map[string]V) error {
	for _, it := range t.Items {
		if _, ok := byItem[it.ID]; !ok {
			return domain.Validation("falta la cantidad del ítem %s (medicamento %s)", it.ID, it.DrugID)
		}
	}
	if len(byItem) != len(t.Items) {
		return domain.Validation("se recibieron %d cantidades para %d ítems", len(byItem), len(t.Items))
	}
	return nil
}

// apply ejecuta step sobre copias de los ítems y solo si todos pasan reemplaza los ítems y cambia el estado.
func (t *Transfer) apply(step func(*TransferItem) error, stamp func(), to TransferStatus, key string, now time.Time) error {
	items := make([]*TransferItem, len(t.Items))
	for i, it := range t.Items {
		c := it.clone()
		if err := step(c); err != nil {
			return err
		}
		items[i] = c
	}
	t.Items = items
	t.Status = to
	stamp()
	t.markKey(to, key)
	t.RecomputeTotals()
	t.UpdatedAt = now
	return nil
}

func (t *Transfer) markKey(stage TransferStatus, key string) {
	if key == "" {
		return
	}
	if t.IdempotencyKeys == nil {
		t.IdempotencyKeys = map[TransferStatus]string{}
	}
	t.IdempotencyKeys[stage] = key
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
