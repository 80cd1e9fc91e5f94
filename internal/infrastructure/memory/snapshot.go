package memory

import (
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// TransferRecord forma persistida de un traslado: cabecera sin ítems más el estado plano de cada ítem.
type TransferRecord struct {
	Header entity.Transfer            `json:"header"`
	Items  []entity.TransferItemState `json:"items"`
}

func recordOf(t *entity.Transfer) TransferRecord {
	h := *t.Clone()
	h.Items = nil
	items := make([]entity.TransferItemState, len(t.Items))
	for i, it := range t.Items {
		items[i] = it.State()
	}
	return TransferRecord{Header: h, Items: items}
}

func (r TransferRecord) transfer() (*entity.Transfer, error) {
	h := r.Header
	t := h.Clone()
	t.Items = make([]*entity.TransferItem, len(r.Items))
	for i, st := range r.Items {
		it, err := entity.RestoreTransferItem(st)
		if err != nil {
			return nil, err
		}
		t.Items[i] = it
	}
	return t, nil
}

// Snapshot representación serializable del estado.
type Snapshot struct {
	Drugs        []entity.Drug             `json:"drugs"`
	Stocks       []entity.Stock            `json:"stocks"`
	Transactions []entity.StockTransaction `json:"transactions"`
	Transfers    []TransferRecord          `json:"transfers"`
}

func snapshotOf(st *state) Snapshot {
	snap := Snapshot{
		Drugs:     make([]entity.Drug, 0, len(st.drugs)),
		Stocks:    make([]entity.Stock, 0, len(st.stocks)),
		Transfers: make([]TransferRecord, 0, len(st.transfers)),
	}
	for _, d := range st.drugs {
		snap.Drugs = append(snap.Drugs, d)
	}
	sort.Slice(snap.Drugs, func(i, j int) bool { return snap.Drugs[i].ID < snap.Drugs[j].ID })
	for _, s := range st.stocks {
		snap.Stocks = append(snap.Stocks, s)
	}
	sort.Slice(snap.Stocks, func(i, j int) bool { return snap.Stocks[i].ID < snap.Stocks[j].ID })
	for _, s := range snap.Stocks {
		snap.Transactions = append(snap.Transactions, st.ledger[s.ID]...)
	}
	for _, t := range st.transfers {
		snap.Transfers = append(snap.Transfers, t)
	}
	sort.Slice(snap.Transfers, func(i, j int) bool { return snap.Transfers[i].Header.ID < snap.Transfers[j].Header.ID })
	return snap
}

func stateFrom(snap Snapshot) (*state, error) {
	st := newState()
	for _, d := range snap.Drugs {
		st.drugs[d.ID] = d
	}
	for _, s := range snap.Stocks {
		st.stocks[s.ID] = s
		st.stockByDrug[drugKey(s.DrugID, s.Department)] = s.ID
	}
	for _, e := range snap.Transactions {
		st.ledger[e.StockID] = append(st.ledger[e.StockID], e)
	}
	for id := range st.ledger {
		entries := st.ledger[id]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	}
	for _, r := range snap.Transfers {
		if _, err := r.transfer(); err != nil {
			return nil, err
		}
		st.transfers[r.Header.ID] = r
		st.byNumber[r.Header.RequisitionNumber] = r.Header.ID
	}
	return st, nil
}
