// Package memory provee un almacén transaccional en memoria que implementa los repositorios
// y los TxRunner de la aplicación. Cada transacción trabaja sobre una copia del estado que
// reemplaza al estado vigente solo si la función termina sin error (clone-and-swap), bajo un
// único candado de escritura.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/transfer"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ inventory.TxRunner = (*Store)(nil)
	_ transfer.TxRunner  = (*Store)(nil)
)

type state struct {
	drugs       map[string]entity.Drug
	stocks      map[string]entity.Stock
	stockByDrug map[string]string // drugID|dept -> stockID
	ledger      map[string][]entity.StockTransaction
	transfers   map[string]TransferRecord
	byNumber    map[string]string // número de requisición -> transferID
}

func newState() *state {
	return &state{
		drugs:       map[string]entity.Drug{},
		stocks:      map[string]entity.Stock{},
		stockByDrug: map[string]string{},
		ledger:      map[string][]entity.StockTransaction{},
		transfers:   map[string]TransferRecord{},
		byNumber:    map[string]string{},
	}
}

// clone copia los índices; los valores guardados nunca se modifican en sitio.
func (s *state) clone() *state {
	c := &state{
		drugs:       make(map[string]entity.Drug, len(s.drugs)),
		stocks:      make(map[string]entity.Stock, len(s.stocks)),
		stockByDrug: make(map[string]string, len(s.stockByDrug)),
		ledger:      make(map[string][]entity.StockTransaction, len(s.ledger)),
		transfers:   make(map[string]TransferRecord, len(s.transfers)),
		byNumber:    make(map[string]string, len(s.byNumber)),
	}
	for k, v := range s.drugs {
		c.drugs[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.stockByDrug {
		c.stockByDrug[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = append([]entity.StockTransaction(nil), v...)
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.byNumber {
		c.byNumber[k] = v
	}
	return c
}

func drugKey(drugID string, dept entity.Department) string {
	return drugID + "|" + string(dept)
}

// CommitHook se invoca con el estado nuevo antes de publicarlo; un error aborta el commit.
type CommitHook func(Snapshot) error

// Store almacén en memoria.
type Store struct {
	mu       sync.RWMutex
	state    *state
	onCommit CommitHook
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{state: newState()}
}

// SetCommitHook registra el hook de persistencia (ver infrastructure/sqlite).
func (s *Store) SetCommitHook(h CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = h
}

// exec ejecuta fn sobre el estado. Las escrituras trabajan sobre una copia que se publica solo sin error.
func (s *Store) exec(ctx context.Context, write bool, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !write {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	return s.publish(ctx, next)
}

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
) error) error {
	return s.transact(ctx, func(b execFunc) error {
		return fn(&StockRepo{exec: b}, &StockTransactionRepo{exec: b})
	})
}

// RunTransfer implementa transfer.TxRunner.
func (s *Store) RunTransfer(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
	transferRepo repository.TransferRepository,
) error) error {
	return s.transact(ctx, func(b execFunc) error {
		return fn(&StockRepo{exec: b}, &StockTransactionRepo{exec: b}, &TransferRepo{exec: b})
	})
}

// transact abre una transacción exclusiva. El estado se copia recién en la primera escritura;
// una transacción de solo lectura no publica nada ni invoca el hook.
func (s *Store) transact(ctx context.Context, fn func(execFunc) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *state
	b := func(_ context.Context, write bool, f func(*state) error) error {
		if write && next == nil {
			next = s.state.clone()
		}
		if next != nil {
			return f(next)
		}
		return f(s.state)
	}
	if err := fn(b); err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.publish(ctx, next)
}

func (s *Store) publish(ctx context.Context, next *state) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.onCommit != nil {
		if err := s.onCommit(snapshotOf(next)); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// execFunc da acceso al estado: atado a una transacción abierta o al almacén (una
// transacción implícita por llamada).
type execFunc func(ctx context.Context, write bool, fn func(*state) error) error

// Stocks repositorio fuera de transacción.
func (s *Store) Stocks() *StockRepo { return &StockRepo{exec: s.exec} }

// Ledger repositorio fuera de transacción.
func (s *Store) Ledger() *StockTransactionRepo { return &StockTransactionRepo{exec: s.exec} }

// Transfers repositorio fuera de transacción.
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{exec: s.exec} }

// Drugs catálogo de medicamentos.
func (s *Store) Drugs() *DrugRepo { return &DrugRepo{exec: s.exec} }

// PutDrug carga o reemplaza un medicamento del catálogo.
func (s *Store) PutDrug(ctx context.Context, d entity.Drug) error {
	return s.exec(ctx, true, func(st *state) error {
		st.drugs[d.ID] = d
		return nil
	})
}

// ExportState copia serializable del estado vigente.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.state)
}

// ImportState reemplaza el estado vigente.
func (s *Store) ImportState(snap Snapshot) error {
	st, err := stateFrom(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}
