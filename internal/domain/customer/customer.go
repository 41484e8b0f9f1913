// Package customer holds the customer record aggregate, its merge rules and
// the persistence port used by the application layer.
package customer

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// DefaultRecentLimit is the size of the recency window
const DefaultRecentLimit = 10

// Field names, shared with the storage columns and JSON keys
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"
)

// validate is safe for concurrent use
var validate = validator.New()

// Customer is a customer contact record.
// ID and CreatedAt are assigned by the store and never change afterwards.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// NewCustomer creates a customer that has not been persisted yet.
// All fields are trimmed and validated.
func NewCustomer(name, email, phone, address string) (*Customer, error) {
	var err error
	c := &Customer{}
	if c.Name, err = validateName(name); err != nil {
		return nil, err
	}
	if c.Email, err = validateEmail(email); err != nil {
		return nil, err
	}
	if c.Phone, err = validatePhone(phone); err != nil {
		return nil, err
	}
	if c.Address, err = validateAddress(address); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply merges a normalized patch into the customer and returns the fields
// whose value actually changed. Absent fields are left untouched.
func (c *Customer) Apply(p Patch) []string {
	var changed []string
	for _, f := range p.entries() {
		v, ok := f.value.Get()
		if !ok {
			continue
		}
		dst := c.ref(f.name)
		if *dst != v {
			*dst = v
			changed = append(changed, f.name)
		}
	}
	return changed
}

// Value returns the current value of a mutable field
func (c *Customer) Value(field string) string {
	if ref := c.ref(field); ref != nil {
		return *ref
	}
	return ""
}

func (c *Customer) ref(field string) *string {
	switch field {
	case FieldName:
		return &c.Name
	case FieldEmail:
		return &c.Email
	case FieldPhone:
		return &c.Phone
	case FieldAddress:
		return &c.Address
	}
	return nil
}

// Validation functions. Each returns the trimmed value.

func validateName(name string) (string, error) {
	return requireNonBlank(FieldName, name, "Name is required")
}

func validatePhone(phone string) (string, error) {
	return requireNonBlank(FieldPhone, phone, "Phone number is required")
}

func validateAddress(address string) (string, error) {
	return requireNonBlank(FieldAddress, address, "Address is required")
}

func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || validate.Var(email, "email") != nil {
		return "", shared.NewValidationError(FieldEmail, "Valid email is required")
	}
	return email, nil
}

func requireNonBlank(field, value, message string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", shared.NewValidationError(field, message)
	}
	return value, nil
}
