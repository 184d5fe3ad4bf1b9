package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Projection types ──────────────────────────────────────────────────────────

// Tally is a count with its money sum.
type Tally struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// MonthPoint is one month of the sales series. Month is YYYY-MM.
type MonthPoint struct {
	Month string          `json:"month"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Debtor is a customer ranked by unpaid debt.
type Debtor struct {
	CustomerID   int             `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	DebtCount    int             `json:"debt_count"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// OperatorDashboard is the business-wide view.
type OperatorDashboard struct {
	ActiveProducts     int           `json:"active_products"`
	ActiveCustomers    int           `json:"active_customers"`
	ActiveEmployees    int           `json:"active_employees"`
	MonthSales         Tally         `json:"month_sales"`
	MonthDistributions Tally         `json:"month_distributions"`
	UnpaidDebts        Tally         `json:"unpaid_debts"`
	RecentSales        []Sale        `json:"recent_sales"`
	SalesSeries        []MonthPoint  `json:"sales_series"`
	StockLevels        []StockLevel  `json:"stock_levels"`
	CostByVehicle      []VehicleCost `json:"cost_by_vehicle"`
	TopDebtors         []Debtor      `json:"top_debtors"`
}

// StaffDashboard carries today and this-month operational counters.
type StaffDashboard struct {
	TodaySales          Tally          `json:"today_sales"`
	TodayDistributions  int            `json:"today_distributions"`
	MonthSales          Tally          `json:"month_sales"`
	RecentSales         []Sale         `json:"recent_sales"`
	StockLevels         []StockLevel   `json:"stock_levels"`
	RecentDistributions []Distribution `json:"recent_distributions"`
}

// CustomerDashboard is a customer's own purchases and debts. NotLinked is set
// when the account has no customer profile, and every other field is empty.
type CustomerDashboard struct {
	NotLinked       bool        `json:"not_linked"`
	CustomerID      int         `json:"customer_id,omitempty"`
	CustomerName    string      `json:"customer_name,omitempty"`
	Purchases       Tally       `json:"purchases"`
	MonthPurchases  Tally       `json:"month_purchases"`
	Debts           DebtSummary `json:"debts"`
	RecentPurchases []Sale      `json:"recent_purchases"`
	UnpaidDebts     []Debt      `json:"unpaid_debts"`
}

// Dashboard is the role-specific view. Exactly one section is set.
type Dashboard struct {
	Role     string             `json:"role"`
	Operator *OperatorDashboard `json:"operator,omitempty"`
	Staff    *StaffDashboard    `json:"staff,omitempty"`
	Customer *CustomerDashboard `json:"customer,omitempty"`
}

// CustomerDebts is a customer's own debt listing.
type CustomerDebts struct {
	NotLinked bool         `json:"not_linked"`
	Debts     []Debt       `json:"debts"`
	Summary   *DebtSummary `json:"summary,omitempty"`
}

// CustomerSales is a customer's own purchase listing.
type CustomerSales struct {
	NotLinked bool   `json:"not_linked"`
	Sales     []Sale `json:"sales"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ProjectionService builds role-scoped read views. Customer-role reads are
// filtered by the caller's linked customer id in SQL.
type ProjectionService interface {
	// Dashboard dispatches on the caller's role. now fixes "today" and "this month".
	Dashboard(ctx context.Context, id Identity, now time.Time) (*Dashboard, error)

	// CustomerDebts lists the caller's own debts with their summary.
	CustomerDebts(ctx context.Context, id Identity, f DebtFilter) (*CustomerDebts, error)

	// CustomerDebt returns one of the caller's own debts. A debt belonging to
	// another customer, or with no sale link, is a ForbiddenError.
	CustomerDebt(ctx context.Context, id Identity, debtID int) (*Debt, error)

	// CustomerSales lists the caller's own purchases.
	CustomerSales(ctx context.Context, id Identity, f SaleFilter) (*CustomerSales, error)
}

type projectionService struct {
	pool *pgxpool.Pool
}

// NewProjectionService constructs a ProjectionService backed by the given pool.
func NewProjectionService(pool *pgxpool.Pool) ProjectionService {
	return &projectionService{pool: pool}
}

// projector carries the read handle and clock into a role's project method.
type projector struct {
	q          pgxQuerier
	today      string
	monthStart string
	monthEnd   string
	now        time.Time
}

func newProjector(q pgxQuerier, now time.Time) *projector {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return &projector{
		q:          q,
		today:      now.Format(dateLayout),
		monthStart: first.Format(dateLayout),
		monthEnd:   first.AddDate(0, 1, -1).Format(dateLayout),
		now:        now,
	}
}

func (s *projectionService) Dashboard(ctx context.Context, id Identity, now time.Time) (*Dashboard, error) {
	if id.Role == nil {
		return nil, &ForbiddenError{Reason: "caller has no role"}
	}
	return id.Role.project(ctx, newProjector(s.pool, now))
}

// ── Operator ──────────────────────────────────────────────────────────────────

func (OperatorRole) project(ctx context.Context, p *projector) (*Dashboard, error) {
	d := &OperatorDashboard{}

	err := p.q.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM products  WHERE is_active = true),
		       (SELECT COUNT(*) FROM customers WHERE is_active = true),
		       (SELECT COUNT(*) FROM employees WHERE is_active = true)
	`).Scan(&d.ActiveProducts, &d.ActiveCustomers, &d.ActiveEmployees)
	if err != nil {
		return nil, fmt.Errorf("failed to count registry: %w", err)
	}

	if d.MonthSales, err = p.salesTally(ctx, p.monthStart, p.monthEnd, nil); err != nil {
		return nil, err
	}
	if d.MonthDistributions, err = p.distributionTally(ctx, p.monthStart, p.monthEnd); err != nil {
		return nil, err
	}
	summary, err := debtSummary(ctx, p.q, DebtFilter{})
	if err != nil {
		return nil, err
	}
	d.UnpaidDebts = Tally{Count: summary.UnpaidCount, Sum: summary.UnpaidValue}

	if d.RecentSales, err = listSales(ctx, p.q, SaleFilter{Limit: 5}); err != nil {
		return nil, err
	}
	if d.SalesSeries, err = p.salesSeries(ctx, 6); err != nil {
		return nil, err
	}
	if d.StockLevels, err = stockLevels(ctx, p.q, LatestByID); err != nil {
		return nil, err
	}
	if d.CostByVehicle, err = costByVehicle(ctx, p.q, p.monthStart, p.monthEnd); err != nil {
		return nil, err
	}
	if d.TopDebtors, err = p.topDebtors(ctx, 5); err != nil {
		return nil, err
	}

	return &Dashboard{Role: OperatorRole{}.Name(), Operator: d}, nil
}

func (p *projector) salesSeries(ctx context.Context, months int) ([]MonthPoint, error) {
	first := time.Date(p.now.Year(), p.now.Month(), 1, 0, 0, 0, 0, p.now.Location())
	start := first.AddDate(0, -(months - 1), 0)

	rows, err := p.q.Query(ctx, `
		SELECT to_char(m.month, 'YYYY-MM'), COUNT(s.id), COALESCE(SUM(s.total), 0)
		FROM generate_series($1::date, $2::date, interval '1 month') AS m(month)
		LEFT JOIN sales s ON date_trunc('month', s.sale_date) = m.month
		GROUP BY m.month
		ORDER BY m.month
	`, start.Format(dateLayout), first.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales series: %w", err)
	}
	defer rows.Close()

	var out []MonthPoint
	for rows.Next() {
		var mp MonthPoint
		if err := rows.Scan(&mp.Month, &mp.Count, &mp.Total); err != nil {
			return nil, fmt.Errorf("failed to scan sales series: %w", err)
		}
		out = append(out, mp)
	}
	return out, rows.Err()
}

func (p *projector) topDebtors(ctx context.Context, n int) ([]Debtor, error) {
	rows, err := p.q.Query(ctx, `
		SELECT c.id, c.name, COUNT(d.id), SUM(d.remaining)
		FROM debts d
		JOIN sales s     ON s.id = d.sale_id
		JOIN customers c ON c.id = s.customer_id
		WHERE d.status = 'unpaid'
		GROUP BY c.id, c.name
		ORDER BY SUM(d.remaining) DESC, c.id
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top debtors: %w", err)
	}
	defer rows.Close()

	var out []Debtor
	for rows.Next() {
		var d Debtor
		if err := rows.Scan(&d.CustomerID, &d.CustomerName, &d.DebtCount, &d.Remaining); err != nil {
			return nil, fmt.Errorf("failed to scan debtor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ── Staff ─────────────────────────────────────────────────────────────────────

func (StaffRole) project(ctx context.Context, p *projector) (*Dashboard, error) {
	d := &StaffDashboard{}
	var err error

	if d.TodaySales, err = p.salesTally(ctx, p.today, p.today, nil); err != nil {
		return nil, err
	}
	today, err := p.distributionTally(ctx, p.today, p.today)
	if err != nil {
		return nil, err
	}
	d.TodayDistributions = today.Count
	if d.MonthSales, err = p.salesTally(ctx, p.monthStart, p.monthEnd, nil); err != nil {
		return nil, err
	}
	if d.RecentSales, err = listSales(ctx, p.q, SaleFilter{Limit: 10}); err != nil {
		return nil, err
	}
	if d.StockLevels, err = stockLevels(ctx, p.q, LatestByID); err != nil {
		return nil, err
	}
	if d.RecentDistributions, err = listDistributions(ctx, p.q, DistributionFilter{Limit: 5}); err != nil {
		return nil, err
	}

	return &Dashboard{Role: StaffRole{}.Name(), Staff: d}, nil
}

// ── Customer ──────────────────────────────────────────────────────────────────

func (r CustomerRole) project(ctx context.Context, p *projector) (*Dashboard, error) {
	if r.LinkedCustomerID == nil {
		return &Dashboard{Role: r.Name(), Customer: &CustomerDashboard{NotLinked: true}}, nil
	}
	cid := *r.LinkedCustomerID

	c, err := getCustomer(ctx, p.q, cid)
	if err != nil {
		return nil, err
	}
	d := &CustomerDashboard{CustomerID: c.ID, CustomerName: c.Name}

	if d.Purchases, err = p.salesTally(ctx, "", "", &cid); err != nil {
		return nil, err
	}
	if d.MonthPurchases, err = p.salesTally(ctx, p.monthStart, p.monthEnd, &cid); err != nil {
		return nil, err
	}
	summary, err := debtSummary(ctx, p.q, DebtFilter{CustomerID: &cid})
	if err != nil {
		return nil, err
	}
	d.Debts = *summary
	if d.RecentPurchases, err = listSales(ctx, p.q, SaleFilter{CustomerID: &cid, Limit: 5}); err != nil {
		return nil, err
	}
	if d.UnpaidDebts, err = listDebts(ctx, p.q, DebtFilter{CustomerID: &cid, Status: StatusUnpaid}, 5); err != nil {
		return nil, err
	}

	return &Dashboard{Role: r.Name(), Customer: d}, nil
}

// customerScope returns the caller's linked customer id. ok is false for an
// unlinked customer account; any other role is forbidden.
func customerScope(id Identity) (cid int, ok bool, err error) {
	r, isCustomer := id.Role.(CustomerRole)
	if !isCustomer {
		return 0, false, &ForbiddenError{Reason: "customer routes require a customer account"}
	}
	if r.LinkedCustomerID == nil {
		return 0, false, nil
	}
	return *r.LinkedCustomerID, true, nil
}

func (s *projectionService) CustomerDebts(ctx context.Context, id Identity, f DebtFilter) (*CustomerDebts, error) {
	cid, ok, err := customerScope(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &CustomerDebts{NotLinked: true}, nil
	}

	// The caller's id always overrides whatever the filter carried.
	f.CustomerID = &cid
	debts, err := listDebts(ctx, s.pool, f, 0)
	if err != nil {
		return nil, err
	}
	summary, err := debtSummary(ctx, s.pool, f)
	if err != nil {
		return nil, err
	}
	return &CustomerDebts{Debts: debts, Summary: summary}, nil
}

func (s *projectionService) CustomerDebt(ctx context.Context, id Identity, debtID int) (*Debt, error) {
	cid, ok, err := customerScope(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ForbiddenError{Reason: "account is not linked to a customer profile"}
	}

	var owner *int
	err = s.pool.QueryRow(ctx, `
		SELECT s.customer_id
		FROM debts d
		LEFT JOIN sales s ON s.id = d.sale_id
		WHERE d.id = $1
	`, debtID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("debt", debtID)
		}
		return nil, fmt.Errorf("failed to resolve debt owner: %w", err)
	}
	if owner == nil || *owner != cid {
		return nil, &ForbiddenError{Reason: fmt.Sprintf("debt %d does not belong to customer %d", debtID, cid)}
	}
	return getDebt(ctx, s.pool, debtID)
}

func (s *projectionService) CustomerSales(ctx context.Context, id Identity, f SaleFilter) (*CustomerSales, error) {
	cid, ok, err := customerScope(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &CustomerSales{NotLinked: true}, nil
	}

	f.CustomerID = &cid
	sales, err := listSales(ctx, s.pool, f)
	if err != nil {
		return nil, err
	}
	return &CustomerSales{Sales: sales}, nil
}

// ── Shared aggregates ─────────────────────────────────────────────────────────

// salesTally counts and sums sales in [from, to]; empty bounds are open.
func (p *projector) salesTally(ctx context.Context, from, to string, customerID *int) (Tally, error) {
	var w whereBuilder
	if customerID != nil {
		w.add("customer_id = $%d", *customerID)
	}
	if from != "" {
		w.add("sale_date >= $%d", from)
	}
	if to != "" {
		w.add("sale_date <= $%d", to)
	}

	var t Tally
	err := p.q.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales`+w.clause(), w.args...).Scan(&t.Count, &t.Sum)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to tally sales: %w", err)
	}
	return t, nil
}

func (p *projector) distributionTally(ctx context.Context, from, to string) (Tally, error) {
	var t Tally
	err := p.q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cost), 0)
		FROM distributions
		WHERE distribution_date BETWEEN $1 AND $2
	`, from, to).Scan(&t.Count, &t.Sum)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to tally distributions: %w", err)
	}
	return t, nil
}
