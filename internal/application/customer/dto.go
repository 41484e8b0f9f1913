package customer

import (
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/samber/lo"
)

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// UpdateCustomerRequest represents a partial update. A nil field is left
// unchanged; an empty string is a provided value and fails validation.
type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// ToPatch converts the request into a domain patch
func (r UpdateCustomerRequest) ToPatch() customer.Patch {
	return customer.Patch{
		Name:    customer.OptionFromPtr(r.Name),
		Email:   customer.OptionFromPtr(r.Email),
		Phone:   customer.OptionFromPtr(r.Phone),
		Address: customer.OptionFromPtr(r.Address),
	}
}

// RecentCustomersQuery holds the query parameters of the recency window
type RecentCustomersQuery struct {
	Limit int `form:"limit"`
}

// SearchCustomersQuery holds the query parameters of a search
type SearchCustomersQuery struct {
	Query string `form:"q" binding:"required"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
}

// ToCustomerResponses converts a slice of customers. The result is never nil,
// so an empty list encodes as [].
func ToCustomerResponses(customers []customer.Customer) []CustomerResponse {
	return lo.Map(customers, func(c customer.Customer, _ int) CustomerResponse {
		return ToCustomerResponse(&c)
	})
}
