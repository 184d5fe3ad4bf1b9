package web

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"trade-ledger/internal/app"
	"trade-ledger/internal/export"
)

// ── Sales ─────────────────────────────────────────────────────────────────────

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	f, ok := saleFilter(r)
	if !ok {
		writeError(w, r, "invalid customer_id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ListSales(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, s)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, result)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateSale(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.svc.DeleteSale)
}

// ── Debts ─────────────────────────────────────────────────────────────────────

func (h *Handler) listDebts(w http.ResponseWriter, r *http.Request) {
	f, ok := debtFilter(r)
	if !ok {
		writeError(w, r, "invalid debt filter", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ListDebts(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetDebt(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// debtCandidates handles GET /api/debts/candidates?include_sale_id=N.
func (h *Handler) debtCandidates(w http.ResponseWriter, r *http.Request) {
	include, ok := optionalIntQuery(r, "include_sale_id")
	if !ok {
		writeError(w, r, "invalid include_sale_id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.DebtCandidates(r.Context(), include)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createDebt(w http.ResponseWriter, r *http.Request) {
	var req app.DebtRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.CreateDebt(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, d)
}

func (h *Handler) updateDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.DebtRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.UpdateDebt(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) deleteDebt(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.svc.DeleteDebt)
}

// applyPayment handles POST /api/debts/{id}/payments.
func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.ApplyPayment(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

// exportDebts handles GET /api/debts/export and streams an xlsx workbook.
func (h *Handler) exportDebts(w http.ResponseWriter, r *http.Request) {
	f, ok := debtFilter(r)
	if !ok {
		writeError(w, r, "invalid debt filter", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	// Render into memory first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.svc.ExportDebts(r.Context(), f, &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filename := "debts-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}

// ── Shared ────────────────────────────────────────────────────────────────────

func (h *Handler) deleteByID(w http.ResponseWriter, r *http.Request, del func(context.Context, int) error) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := del(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, set func(context.Context, int, bool) error) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := set(r.Context(), id, req.Active); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
