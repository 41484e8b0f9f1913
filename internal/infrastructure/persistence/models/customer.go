package models

import (
	"github.com/crm/backend/internal/domain/customer"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// CustomerModel is the persistence model for the Customer domain entity.
// NameFolded and EmailFolded hold the Unicode case folding of Name and
// Email and are what search matches against.
type CustomerModel struct {
	BaseModel
	Name        string `gorm:"type:text;not null"`
	Email       string `gorm:"type:text;not null"`
	Phone       string `gorm:"type:text;not null"`
	Address     string `gorm:"type:text;not null"`
	NameFolded  string `gorm:"type:text;not null"`
	EmailFolded string `gorm:"type:text;not null"`
}

// FoldedColumns maps each searchable field to the column holding its folding
var FoldedColumns = map[string]string{
	customer.FieldName:  "name_folded",
	customer.FieldEmail: "email_folded",
}

// FoldCase applies locale-independent Unicode case folding.
func FoldCase(s string) string {
	// a Caser keeps state, so each call gets its own
	return cases.Fold().String(s)
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer entity
func (m *CustomerModel) ToDomain() *customer.Customer {
	return &customer.Customer{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Address:   m.Address,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Customer entity
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
	m.NameFolded = FoldCase(c.Name)
	m.EmailFolded = FoldCase(c.Email)
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer entity
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// CustomersToDomain converts a slice of models, never returning nil
func CustomersToDomain(ms []CustomerModel) []customer.Customer {
	return lo.Map(ms, func(m CustomerModel, _ int) customer.Customer {
		return *m.ToDomain()
	})
}
