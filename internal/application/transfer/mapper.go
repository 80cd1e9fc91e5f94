package transfer

import (
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func toTransferResponse(t *entity.Transfer) *dto.TransferResponse {
	items := make([]dto.TransferItemResponse, 0, len(t.Items))
	for _, it := range t.Items {
		st := it.State()
		r := dto.TransferItemResponse{
			ID:           st.ID,
			DrugID:       st.DrugID,
			Stage:        st.Stage.String(),
			RequestedQty: st.RequestedQty,
			ApprovedQty:  st.ApprovedQty,
			DispensedQty: st.DispensedQty,
			ReceivedQty:  st.ReceivedQty,
			UnitPrice:    st.UnitPrice,
			TotalValue:   st.TotalValue,
		}
		if st.Batch != nil {
			exp := st.Batch.ExpiryDate
			r.LotNumber = st.Batch.LotNumber
			r.ExpiryDate = &exp
			r.Manufacturer = st.Batch.Manufacturer
		}
		items = append(items, r)
	}
	return &dto.TransferResponse{
		ID:                t.ID,
		RequisitionNumber: t.RequisitionNumber,
		FromDept:          string(t.FromDept),
		ToDept:            string(t.ToDept),
		Status:            string(t.Status),
		RequesterID:       t.RequesterID,
		ApproverID:        t.ApproverID,
		DispenserID:       t.DispenserID,
		ReceiverID:        t.ReceiverID,
		CancelledBy:       t.CancelledBy,
		CancelReason:      t.CancelReason,
		Purpose:           t.Purpose,
		Notes:             t.Notes,
		TotalItems:        t.TotalItems,
		TotalValue:        t.TotalValue,
		Items:             items,
		Version:           t.Version,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		ApprovedAt:        t.ApprovedAt,
		PreparedAt:        t.PreparedAt,
		DeliveredAt:       t.DeliveredAt,
		CancelledAt:       t.CancelledAt,
	}
}
