package web

import (
	"net/http"

	"trade-ledger/internal/app"
)

// ── Projections ───────────────────────────────────────────────────────────────

// dashboard handles GET /api/dashboard; the content depends on the caller's role.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Dashboard(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) myDebts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	f, ok := debtFilter(r)
	if !ok {
		writeError(w, r, "invalid debt filter", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.MyDebts(r.Context(), id, f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) myDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	debtID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.MyDebt(r.Context(), id, debtID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) myPurchases(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	f, _ := saleFilter(r)
	result, err := h.svc.MyPurchases(r.Context(), id, f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Forecasting ───────────────────────────────────────────────────────────────
// Collaborator failures come back inside the 200 payload's error field.

func (h *Handler) forecastStock(w http.ResponseWriter, r *http.Request) {
	var req app.ForecastRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ForecastStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) predictDistributionCost(w http.ResponseWriter, r *http.Request) {
	var req app.CostPredictionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.PredictDistributionCost(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) trainDistribution(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.TrainDistribution(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) forecastHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"healthy": h.svc.ForecastHealth(r.Context())})
}

// ── Reconciliation and AI ─────────────────────────────────────────────────────

func (h *Handler) runReconciliation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunReconciliation(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// reconciliationReports handles GET /api/reconciliation/reports?correlation_id=.
func (h *Handler) reconciliationReports(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReconciliationReports(r.Context(), r.URL.Query().Get("correlation_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// interpretSale handles POST /api/ai/interpret-sale. The draft is returned for
// confirmation and submitted separately through POST /api/sales.
func (h *Handler) interpretSale(w http.ResponseWriter, r *http.Request) {
	var req app.InterpretRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.InterpretSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
