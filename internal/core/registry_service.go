package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ttacon/libphonenumber"
)

// phoneRegion is the default region for numbers entered without a country code.
const phoneRegion = "ID"

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RegistryService manages reference data: products, customers and employees.
type RegistryService interface {
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	DeleteProduct(ctx context.Context, id int) error

	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int, in CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, id int) (*Customer, error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error)
	SetCustomerActive(ctx context.Context, id int, active bool) error
	DeleteCustomer(ctx context.Context, id int) error

	CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error)
	UpdateEmployee(ctx context.Context, id int, in EmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SetEmployeeActive(ctx context.Context, id int, active bool) error
	DeleteEmployee(ctx context.Context, id int) error
}

type registryService struct {
	pool *pgxpool.Pool
}

func NewRegistryService(pool *pgxpool.Pool) RegistryService {
	return &registryService{pool: pool}
}

// NormalizePhone returns raw in E.164 form. Empty input stays empty.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, phoneRegion)
	if err != nil {
		return "", validationErr("phone", "cannot parse %q: %v", raw, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", validationErr("phone", "%q is not a valid phone number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// ── Products ──────────────────────────────────────────────────────────────────

const productColumns = `id, code, name, description, category, unit_price, unit, is_active, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.Unit, &p.IsActive, &p.CreatedAt)
	return &p, err
}

func (s *registryService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if in.UnitPrice.IsNegative() {
		return nil, validationErr("unit_price", "cannot be negative, got %s", in.UnitPrice)
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (code, name, description, category, unit_price, unit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		in.Code, in.Name, in.Description, in.Category, in.UnitPrice, unitOrDefault(in.Unit), in.IsActive))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", uniqueViolation(err, "code", in.Code))
	}
	return p, nil
}

func (s *registryService) UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error) {
	if in.UnitPrice.IsNegative() {
		return nil, validationErr("unit_price", "cannot be negative, got %s", in.UnitPrice)
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products
		SET code = $1, name = $2, description = $3, category = $4, unit_price = $5,
		    unit = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+productColumns,
		in.Code, in.Name, in.Description, in.Category, in.UnitPrice, unitOrDefault(in.Unit), in.IsActive, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product", id)
		}
		return nil, fmt.Errorf("failed to update product: %w", uniqueViolation(err, "code", in.Code))
	}
	return p, nil
}

func (s *registryService) GetProduct(ctx context.Context, id int) (*Product, error) {
	return getProduct(ctx, s.pool, id)
}

func getProduct(ctx context.Context, q pgxQuerier, id int) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product", id)
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return p, nil
}

func (s *registryService) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = false OR is_active = true)
		ORDER BY code
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *registryService) DeleteProduct(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "products", "product", id)
}

func unitOrDefault(unit string) string {
	if unit == "" {
		return "kg"
	}
	return unit
}

// ── Customers ─────────────────────────────────────────────────────────────────

const customerColumns = `id, code, name, location, address, phone, email, distance_km, is_active, user_id, created_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Location, &c.Address, &c.Phone, &c.Email,
		&c.DistanceKm, &c.IsActive, &c.UserID, &c.CreatedAt)
	return &c, err
}

func (s *registryService) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	phone, err := prepareCustomer(in)
	if err != nil {
		return nil, err
	}
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name, location, address, phone, email, distance_km, is_active, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+customerColumns,
		in.Code, in.Name, in.Location, in.Address, phone, in.Email, in.DistanceKm, in.IsActive, in.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", uniqueViolation(err, "code", in.Code))
	}
	return c, nil
}

func (s *registryService) UpdateCustomer(ctx context.Context, id int, in CustomerInput) (*Customer, error) {
	phone, err := prepareCustomer(in)
	if err != nil {
		return nil, err
	}
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		UPDATE customers
		SET code = $1, name = $2, location = $3, address = $4, phone = $5, email = $6,
		    distance_km = $7, is_active = $8, user_id = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING `+customerColumns,
		in.Code, in.Name, in.Location, in.Address, phone, in.Email, in.DistanceKm, in.IsActive, in.UserID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("customer", id)
		}
		return nil, fmt.Errorf("failed to update customer: %w", uniqueViolation(err, "code", in.Code))
	}
	return c, nil
}

func prepareCustomer(in CustomerInput) (string, error) {
	if in.DistanceKm < 0 {
		return "", validationErr("distance_km", "cannot be negative, got %d", in.DistanceKm)
	}
	return NormalizePhone(in.Phone)
}

func (s *registryService) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return getCustomer(ctx, s.pool, id)
}

func getCustomer(ctx context.Context, q pgxQuerier, id int) (*Customer, error) {
	c, err := scanCustomer(q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("customer", id)
		}
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}
	return c, nil
}

func (s *registryService) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE ($1 = false OR is_active = true)
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *registryService) SetCustomerActive(ctx context.Context, id int, active bool) error {
	return setActive(ctx, s.pool, "customers", "customer", id, active)
}

func (s *registryService) DeleteCustomer(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "customers", "customer", id)
}

// ── Employees ─────────────────────────────────────────────────────────────────

const employeeColumns = `id, name, position, contact, address, is_active, user_id, created_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Position, &e.Contact, &e.Address, &e.IsActive, &e.UserID, &e.CreatedAt)
	return &e, err
}

func (s *registryService) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	e, err := scanEmployee(s.pool.QueryRow(ctx, `
		INSERT INTO employees (name, position, contact, address, is_active, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+employeeColumns,
		in.Name, in.Position, in.Contact, in.Address, in.IsActive, in.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", uniqueViolation(err, "user_id", "linked account"))
	}
	return e, nil
}

func (s *registryService) UpdateEmployee(ctx context.Context, id int, in EmployeeInput) (*Employee, error) {
	e, err := scanEmployee(s.pool.QueryRow(ctx, `
		UPDATE employees
		SET name = $1, position = $2, contact = $3, address = $4, is_active = $5, user_id = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING `+employeeColumns,
		in.Name, in.Position, in.Contact, in.Address, in.IsActive, in.UserID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("employee", id)
		}
		return nil, fmt.Errorf("failed to update employee: %w", uniqueViolation(err, "user_id", "linked account"))
	}
	return e, nil
}

func (s *registryService) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func (s *registryService) SetEmployeeActive(ctx context.Context, id int, active bool) error {
	return setActive(ctx, s.pool, "employees", "employee", id, active)
}

func (s *registryService) DeleteEmployee(ctx context.Context, id int) error {
	return deleteByID(ctx, s.pool, "employees", "employee", id)
}

// ── Shared helpers ────────────────────────────────────────────────────────────

// table is always a package constant, never caller input.
func setActive(ctx context.Context, q pgxQuerier, table, entity string, id int, active bool) error {
	tag, err := q.Exec(ctx, `UPDATE `+table+` SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(entity, id)
	}
	return nil
}

func deleteByID(ctx context.Context, q pgxQuerier, table, entity string, id int) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, referencedViolation(err, entity))
	}
	if tag.RowsAffected() == 0 {
		return notFound(entity, id)
	}
	return nil
}
