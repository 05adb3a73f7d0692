package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !h.decode(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "orderID")

	res, err := h.svc.Apply(r.Context(), discount.ApplyRequest{
		OrderID:       orderID,
		DiscountID:    req.DiscountID,
		CustomerID:    req.CustomerID,
		OrderAmount:   *req.OrderAmount,
		PaymentStatus: discount.PaymentStatus(req.PaymentStatus),
		CustomerTier:  req.CustomerTier,
		Lines:         toLines(req.Lines),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, applyResponse{
		ApplicationID:  res.ApplicationID,
		OrderID:        orderID,
		DiscountID:     req.DiscountID,
		DiscountAmount: res.DiscountAmount,
		FinalAmount:    res.FinalAmount,
	})
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	apps, err := h.svc.Applications(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := applicationsResponse{OrderID: orderID, Applications: make([]applicationResponse, len(apps))}
	for i, a := range apps {
		out.Applications[i] = applicationResponse{
			ID:                a.ID,
			DiscountID:        a.DiscountID,
			CustomerID:        a.CustomerID,
			Kind:              string(a.Kind),
			OriginalAmount:    a.OriginalAmount,
			AmountApplied:     a.AmountApplied,
			FinalAmount:       a.FinalAmount,
			PercentageApplied: a.PercentageApplied,
			AppliedAt:         a.AppliedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
