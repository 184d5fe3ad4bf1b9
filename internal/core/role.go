package core

import (
	"context"
	"fmt"
)

// Role is the closed set of caller classes. The unexported project method
// seals the set to this package; each variant builds its own dashboard.
type Role interface {
	Name() string
	project(ctx context.Context, p *projector) (*Dashboard, error)
}

// OperatorRole sees business-wide aggregates.
type OperatorRole struct{}

// StaffRole sees today/this-month operational counters.
type StaffRole struct{}

// CustomerRole sees only its own purchases and debts. LinkedCustomerID is
// nil when the account has no customer profile attached.
type CustomerRole struct {
	LinkedCustomerID *int
}

func (OperatorRole) Name() string { return "operator" }
func (StaffRole) Name() string    { return "staff" }
func (CustomerRole) Name() string { return "customer" }

// Identity is the explicit caller context passed into every projection call.
type Identity struct {
	UserID int
	Role   Role
}

// RoleFromString maps the stored role name to its variant. customerID is
// only consulted for the customer role.
func RoleFromString(name string, customerID *int) (Role, error) {
	switch name {
	case "operator":
		return OperatorRole{}, nil
	case "staff":
		return StaffRole{}, nil
	case "customer":
		return CustomerRole{LinkedCustomerID: customerID}, nil
	}
	return nil, fmt.Errorf("unknown role %q", name)
}
