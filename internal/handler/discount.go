package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	var filter discount.ListFilter
	q := r.URL.Query()
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "active must be true or false"})
			return
		}
		filter.Active = &active
	}
	if v := q.Get("kind"); v != "" {
		filter.Kind = discount.Kind(v)
		if !filter.Kind.Valid() {
			writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "unknown kind " + strconv.Quote(v)})
			return
		}
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]discountResponse, len(items))
	for i := range items {
		out[i] = toDiscountResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountResponse(d))
}

func (h *Handler) createDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.svc.Create(r.Context(), req.toDomain(""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/discounts/"+d.ID)
	writeJSON(w, http.StatusCreated, toDiscountResponse(d))
}

func (h *Handler) updateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.svc.Update(r.Context(), req.toDomain(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountResponse(d))
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	ev, err := h.svc.Evaluate(r.Context(), discount.EvaluateRequest{
		DiscountID:    id,
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
	writeJSON(w, http.StatusOK, evaluateResponse{
		DiscountID: id,
		Eligible:   ev.Eligible,
		Reasons:    orEmpty(ev.Reasons),
	})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	amount, err := h.svc.Calculate(r.Context(), id, *req.OrderAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{
		DiscountID:     id,
		OrderAmount:    *req.OrderAmount,
		DiscountAmount: amount,
		FinalAmount:    req.OrderAmount.Sub(amount),
	})
}

