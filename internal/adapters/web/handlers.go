package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"trade-ledger/internal/app"
	"trade-ledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Options configure the HTTP adapter.
type Options struct {
	AllowedOrigins string // comma separated; empty disables CORS
	JWTSecret      string
	LoginRate      string // ulule formatted, e.g. "10-M"
	MaxBodyBytes   int64  // 0 means 1 MiB
	Logger         *logrus.Logger
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	log       *logrus.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) (http.Handler, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: opts.JWTSecret,
		log:       opts.Logger,
	}

	loginLimit, err := RateLimit(opts.LoginRate)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(BodyLimit(opts.MaxBodyBytes))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.With(loginLimit).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Authenticated ─────────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)
		r.Get("/api/dashboard", h.dashboard)

		// Customer self-service: scoped to the caller's own customer profile.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole("customer"))
			r.Get("/api/my/debts", h.myDebts)
			r.Get("/api/my/debts/{id}", h.myDebt)
			r.Get("/api/my/purchases", h.myPurchases)
		})

		// ── Operator and staff ────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole("operator", "staff"))

			r.Get("/api/products", h.listProducts)
			r.Get("/api/products/{id}", h.getProduct)
			r.Get("/api/customers", h.listCustomers)
			r.Get("/api/customers/{id}", h.getCustomer)

			r.Get("/api/stock", h.listStock)
			r.Post("/api/stock", h.recordStock)
			r.Get("/api/stock/levels", h.stockLevels)
			r.Get("/api/stock/latest/{productID}", h.latestBalance)
			r.Get("/api/stock/{id}", h.getStock)
			r.Put("/api/stock/{id}", h.updateStock)
			r.Delete("/api/stock/{id}", h.deleteStock)

			r.Get("/api/sales", h.listSales)
			r.Post("/api/sales", h.createSale)
			r.Get("/api/sales/{id}", h.getSale)
			r.Put("/api/sales/{id}", h.updateSale)
			r.Delete("/api/sales/{id}", h.deleteSale)

			r.Get("/api/distributions", h.listDistributions)
			r.Post("/api/distributions", h.createDistribution)
			r.Get("/api/distributions/cost-by-vehicle", h.costByVehicle)
			r.Get("/api/distributions/{id}", h.getDistribution)
			r.Put("/api/distributions/{id}", h.updateDistribution)
			r.Delete("/api/distributions/{id}", h.deleteDistribution)

			r.Get("/api/debts", h.listDebts)
			r.Get("/api/debts/{id}", h.getDebt)
			r.Post("/api/debts/{id}/payments", h.applyPayment)
		})

		// ── Operator only ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole("operator"))

			r.Post("/api/products", h.createProduct)
			r.Put("/api/products/{id}", h.updateProduct)
			r.Delete("/api/products/{id}", h.deleteProduct)

			r.Post("/api/customers", h.createCustomer)
			r.Put("/api/customers/{id}", h.updateCustomer)
			r.Post("/api/customers/{id}/active", h.setCustomerActive)
			r.Delete("/api/customers/{id}", h.deleteCustomer)

			r.Get("/api/employees", h.listEmployees)
			r.Post("/api/employees", h.createEmployee)
			r.Put("/api/employees/{id}", h.updateEmployee)
			r.Post("/api/employees/{id}/active", h.setEmployeeActive)
			r.Delete("/api/employees/{id}", h.deleteEmployee)

			r.Get("/api/debts/candidates", h.debtCandidates)
			r.Get("/api/debts/export", h.exportDebts)
			r.Post("/api/debts", h.createDebt)
			r.Put("/api/debts/{id}", h.updateDebt)
			r.Delete("/api/debts/{id}", h.deleteDebt)

			r.Post("/api/forecast/stock", h.forecastStock)
			r.Post("/api/forecast/distribution-cost", h.predictDistributionCost)
			r.Post("/api/forecast/train", h.trainDistribution)
			r.Get("/api/forecast/health", h.forecastHealth)

			r.Post("/api/reconciliation/run", h.runReconciliation)
			r.Get("/api/reconciliation/reports", h.reconciliationReports)
			r.Post("/api/ai/interpret-sale", h.interpretSale)
		})
	})

	h.router = r
	return r, nil
}

// health returns service status and whether the forecasting service answers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Forecast bool   `json:"forecast"`
	}
	writeJSON(w, response{Status: "ok", Forecast: h.svc.ForecastHealth(r.Context())})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by BodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter, writing 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// optionalIntQuery reads an optional positive integer query parameter.
func optionalIntQuery(r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil, false
	}
	return &v, true
}

func boolQuery(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func saleFilter(r *http.Request) (core.SaleFilter, bool) {
	q := r.URL.Query()
	customer, ok := optionalIntQuery(r, "customer_id")
	limit, _ := strconv.Atoi(q.Get("limit"))
	return core.SaleFilter{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Search:     q.Get("q"),
		CustomerID: customer,
		Limit:      limit,
	}, ok
}

func debtFilter(r *http.Request) (core.DebtFilter, bool) {
	q := r.URL.Query()
	customer, ok := optionalIntQuery(r, "customer_id")
	status := core.Status(q.Get("status"))
	if status != "" && status != core.StatusPaid && status != core.StatusUnpaid {
		return core.DebtFilter{}, false
	}
	return core.DebtFilter{
		Status:     status,
		Search:     q.Get("q"),
		From:       q.Get("from"),
		To:         q.Get("to"),
		CustomerID: customer,
	}, ok
}
