package web

import (
	"net/http"
	"strconv"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"
)

func latestByQuery(r *http.Request) core.LatestBy {
	if r.URL.Query().Get("by") == "date" {
		return core.LatestByDate
	}
	return core.LatestByID
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, _ := strconv.Atoi(q.Get("product_id"))
	result, err := h.svc.ListStock(r.Context(), core.StockFilter{ProductID: productID, From: q.Get("from"), To: q.Get("to")})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	e, err := h.svc.GetStock(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, e)
}

// recordStock handles POST /api/stock. An entry for the same product and day is overwritten.
func (h *Handler) recordStock(w http.ResponseWriter, r *http.Request) {
	var req app.StockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.RecordStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, e)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.StockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.UpdateStock(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, e)
}

func (h *Handler) deleteStock(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.svc.DeleteStock)
}

// latestBalance handles GET /api/stock/latest/{productID}?by=date.
func (h *Handler) latestBalance(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "productID")
	if !ok {
		return
	}
	e, err := h.svc.LatestBalance(r.Context(), productID, latestByQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, e)
}

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.StockLevels(r.Context(), latestByQuery(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Distributions ─────────────────────────────────────────────────────────────

func (h *Handler) listDistributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customer, ok := optionalIntQuery(r, "customer_id")
	if !ok {
		writeError(w, r, "invalid customer_id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	result, err := h.svc.ListDistributions(r.Context(), core.DistributionFilter{
		From:         q.Get("from"),
		To:           q.Get("to"),
		CustomerID:   customer,
		VehicleClass: core.VehicleClass(q.Get("vehicle_class")),
		Limit:        limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.GetDistribution(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) createDistribution(w http.ResponseWriter, r *http.Request) {
	var req app.DistributionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.CreateDistribution(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, d)
}

func (h *Handler) updateDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.DistributionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.UpdateDistribution(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) deleteDistribution(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.svc.DeleteDistribution)
}

func (h *Handler) costByVehicle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.CostByVehicle(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
