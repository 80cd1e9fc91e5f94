package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// ItemStage etapa alcanzada por un ítem de traslado. El orden es estricto:
// solicitado < aprobado < despachado < recibido.
type ItemStage int

const (
	StageRequested ItemStage = iota
	StageApproved
	StageDispensed
	StageReceived
)

func (s ItemStage) String() string {
	switch s {
	case StageRequested:
		return "REQUESTED"
	case StageApproved:
		return "APPROVED"
	case StageDispensed:
		return "DISPENSED"
	case StageReceived:
		return "RECEIVED"
	}
	return fmt.Sprintf("ItemStage(%d)", int(s))
}

// Batch datos de lote del despacho. Se escriben una sola vez en la etapa de despacho.
type Batch struct {
	LotNumber    string
	ExpiryDate   time.Time
	Manufacturer string
}

// TransferItem una línea (medicamento) de un traslado. Las cantidades de cada etapa
// solo existen una vez alcanzada la etapa y se mantienen en cadena monótona
// recibido <= despachado <= aprobado <= solicitado.
type TransferItem struct {
	ID         string
	TransferID string
	DrugID     string
	UnitPrice  decimal.Decimal
	TotalValue decimal.Decimal

	stage     ItemStage
	requested int64
	approved  int64
	dispensed int64
	received  int64
	batch     *Batch
}

// NewTransferItem crea un ítem en etapa solicitada.
func NewTransferItem(id, transferID, drugID string, requested int64, unitPrice decimal.Decimal) (*TransferItem, error) {
	if drugID == "" {
		return nil, domain.Validation("medicamento requerido")
	}
	if requested <= 0 {
		return nil, domain.Validation("cantidad solicitada debe ser mayor a cero (medicamento %s)", drugID)
	}
	if unitPrice.IsNegative() {
		return nil, domain.Validation("precio unitario negativo (medicamento %s)", drugID)
	}
	it := &TransferItem{
		ID:         id,
		TransferID: transferID,
		DrugID:     drugID,
		UnitPrice:  unitPrice,
		stage:      StageRequested,
		requested:  requested,
	}
	it.recomputeValue()
	return it, nil
}

// TransferItemState forma plana para persistencia. Las cantidades son nil mientras la etapa no se alcanza.
type TransferItemState struct {
	ID           string
	TransferID   string
	DrugID       string
	UnitPrice    decimal.Decimal
	TotalValue   decimal.Decimal
	Stage        ItemStage
	RequestedQty int64
	ApprovedQty  *int64
	DispensedQty *int64
	ReceivedQty  *int64
	Batch        *Batch
}

// RestoreTransferItem reconstruye un ítem desde persistencia validando la cadena de etapas.
func RestoreTransferItem(st TransferItemState) (*TransferItem, error) {
	it := &TransferItem{
		ID:         st.ID,
		TransferID: st.TransferID,
		DrugID:     st.DrugID,
		UnitPrice:  st.UnitPrice,
		TotalValue: st.TotalValue,
		stage:      st.Stage,
		requested:  st.RequestedQty,
	}
	reached := func(s ItemStage, q *int64) (int64, error) {
		if (it.stage >= s) != (q != nil) {
			return 0, fmt.Errorf("%w: ítem %s con etapa %s y cantidad %s inconsistente", domain.ErrCorruption, st.ID, st.Stage, s)
		}
		if q == nil {
			return 0, nil
		}
		return *q, nil
	}
	var err error
	if it.approved, err = reached(StageApproved, st.ApprovedQty); err != nil {
		return nil, err
	}
	if it.dispensed, err = reached(StageDispensed, st.DispensedQty); err != nil {
		return nil, err
	}
	if it.received, err = reached(StageReceived, st.ReceivedQty); err != nil {
		return nil, err
	}
	if err := it.checkChain(); err != nil {
		return nil, fmt.Errorf("%w: ítem %s: %v", domain.ErrCorruption, st.ID, err)
	}
	if st.Batch != nil {
		b := *st.Batch
		it.batch = &b
	}
	return it, nil
}

// State devuelve la forma plana del ítem.
func (i *TransferItem) State() TransferItemState {
	st := TransferItemState{
		ID:           i.ID,
		TransferID:   i.TransferID,
		DrugID:       i.DrugID,
		UnitPrice:    i.UnitPrice,
		TotalValue:   i.TotalValue,
		Stage:        i.stage,
		RequestedQty: i.requested,
	}
	if q, ok := i.ApprovedQty(); ok {
		st.ApprovedQty = &q
	}
	if q, ok := i.DispensedQty(); ok {
		st.DispensedQty = &q
	}
	if q, ok := i.ReceivedQty(); ok {
		st.ReceivedQty = &q
	}
	st.Batch = i.Batch()
	return st
}

func (i *TransferItem) Stage() ItemStage    { return i.stage }
func (i *TransferItem) RequestedQty() int64 { return i.requested }

func (i *TransferItem) ApprovedQty() (int64, bool) {
	return i.approved, i.stage >= StageApproved
}

func (i *TransferItem) DispensedQty() (int64, bool) {
	return i.dispensed, i.stage >= StageDispensed
}

func (i *TransferItem) ReceivedQty() (int64, bool) {
	return i.received, i.stage >= StageReceived
}

// Batch copia del lote registrado, nil si no hubo despacho.
func (i *TransferItem) Batch() *Batch {
	if i.batch == nil {
		return nil
	}
	b := *i.batch
	return &b
}

// StageQty cantidad de la última etapa alcanzada; base del valor del ítem.
func (i *TransferItem) StageQty() int64 {
	switch i.stage {
	case StageApproved:
		return i.approved
	case StageDispensed:
		return i.dispensed
	case StageReceived:
		return i.received
	}
	return i.requested
}

// Approve fija la cantidad aprobada (0 <= aprobado <= solicitado).
func (i *TransferItem) Approve(qty int64) error {
	if i.stage != StageRequested {
		return fmt.Errorf("%w: ítem %s ya está en etapa %s", domain.ErrInvalidTransition, i.ID, i.stage)
	}
	if qty < 0 {
		return domain.Validation("cantidad aprobada negativa (ítem %s)", i.ID)
	}
	if qty > i.requested {
		return fmt.Errorf("%w: aprobado %d > solicitado %d (ítem %s)", domain.ErrQuantityChain, qty, i.requested, i.ID)
	}
	i.approved = qty
	i.stage = StageApproved
	i.recomputeValue()
	return nil
}

// Dispense fija la cantidad despachada y el lote. Con cantidad > 0 el lote y el
// vencimiento son obligatorios; con 0 no se registra lote.
func (i *TransferItem) Dispense(qty int64, batch *Batch) error {
	if i.stage != StageApproved {
		return fmt.Errorf("%w: ítem %s en etapa %s, se esperaba %s", domain.ErrInvalidTransition, i.ID, i.stage, StageApproved)
	}
	if qty < 0 {
		return domain.Validation("cantidad despachada negativa (ítem %s)", i.ID)
	}
	if qty > i.approved {
		return fmt.Errorf("%w: despachado %d > aprobado %d (ítem %s)", domain.ErrQuantityChain, qty, i.approved, i.ID)
	}
	if qty > 0 {
		if batch == nil || strings.TrimSpace(batch.LotNumber) == "" || batch.ExpiryDate.IsZero() {
			return fmt.Errorf("%w (ítem %s)", domain.ErrMissingBatch, i.ID)
		}
		b := Batch{
			LotNumber:    strings.TrimSpace(batch.LotNumber),
			ExpiryDate:   batch.ExpiryDate,
			Manufacturer: strings.TrimSpace(batch.Manufacturer),
		}
		i.batch = &b
	}
	i.dispensed = qty
	i.stage = StageDispensed
	i.recomputeValue()
	return nil
}

// Receive fija la cantidad recibida (0 <= recibido <= despachado).
func (i *TransferItem) Receive(qty int64) error {
	if i.stage != StageDispensed {
		return fmt.Errorf("%w: ítem %s en etapa %s, se esperaba %s", domain.ErrInvalidTransition, i.ID, i.stage, StageDispensed)
	}
	if qty < 0 {
		return domain.Validation("cantidad recibida negativa (ítem %s)", i.ID)
	}
	if qty > i.dispensed {
		return fmt.Errorf("%w: recibido %d > despachado %d (ítem %s)", domain.ErrQuantityChain, qty, i.dispensed, i.ID)
	}
	i.received = qty
	i.stage = StageReceived
	i.recomputeValue()
	return nil
}

func (i *TransferItem) clone() *TransferItem {
	c := *i
	c.batch = i.Batch()
	return &c
}

func (i *TransferItem) recomputeValue() {
	i.TotalValue = i.UnitPrice.Mul(decimal.NewFromInt(i.StageQty()))
}

func (i *TransferItem) checkChain() error {
	if i.requested <= 0 {
		return fmt.Errorf("solicitado %d", i.requested)
	}
	if i.stage < StageRequested || i.stage > StageReceived {
		return fmt.Errorf("etapa %d", int(i.stage))
	}
	if i.approved < 0 || i.approved > i.requested {
		return fmt.Errorf("aprobado %d fuera de rango", i.approved)
	}
	if i.dispensed < 0 || i.dispensed > i.approved {
		return fmt.Errorf("despachado %d fuera de rango", i.dispensed)
	}
	if i.received < 0 || i.received > i.dispensed {
		return fmt.Errorf("recibido %d fuera de rango", i.received)
	}
	return nil
}
