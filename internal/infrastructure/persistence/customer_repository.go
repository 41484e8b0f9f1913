package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// searchCondition matches the folded pattern against the folded name and
// email columns. Both sides are folded in Go, so the result does not depend
// on the database collation. Backslash is the LIKE escape so that % and _ in
// a query match literally.
const searchCondition = `name_folded LIKE ? ESCAPE '\' OR email_folded LIKE ? ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GormCustomerRepository implements customer.Repository using GORM
type GormCustomerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{
		db:  db,
		now: time.Now,
	}
}

// Create inserts the customer and fills in the generated ID and CreatedAt.
// CreatedAt is truncated to microseconds, the precision of the timestamp column.
func (r *GormCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	model := models.CustomerModelFromDomain(c)
	model.ID = 0
	model.CreatedAt = r.now().UTC().Truncate(time.Microsecond)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return shared.NewStorageError("create customer", err)
	}

	c.ID = model.ID
	c.CreatedAt = model.CreatedAt
	return nil
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("customer", id)
		}
		return nil, shared.NewStorageError("find customer", err)
	}
	return model.ToDomain(), nil
}

// FindAll returns every customer ordered by ID
func (r *GormCustomerRepository) FindAll(ctx context.Context) ([]customer.Customer, error) {
	var ms []models.CustomerModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, shared.NewStorageError("list customers", err)
	}
	return models.CustomersToDomain(ms), nil
}

// FindRecent returns up to limit customers, newest first. Ties on
// created_at are broken by the higher ID.
func (r *GormCustomerRepository) FindRecent(ctx context.Context, limit int) ([]customer.Customer, error) {
	if limit <= 0 {
		limit = customer.DefaultRecentLimit
	}
	var ms []models.CustomerModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, shared.NewStorageError("list recent customers", err)
	}
	return models.CustomersToDomain(ms), nil
}

// Search returns customers whose name or email contains query, ignoring case
func (r *GormCustomerRepository) Search(ctx context.Context, query string) ([]customer.Customer, error) {
	pattern := "%" + likeEscaper.Replace(models.FoldCase(query)) + "%"

	var ms []models.CustomerModel
	err := r.db.WithContext(ctx).
		Where(searchCondition, pattern, pattern).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, shared.NewStorageError("search customers", err)
	}
	return models.CustomersToDomain(ms), nil
}

// Update locks the row, merges the patch and writes only the changed columns.
// A patch that changes nothing returns the stored record without writing.
func (r *GormCustomerRepository) Update(ctx context.Context, id int64, patch customer.Patch) (*customer.Customer, error) {
	var merged *customer.Customer

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.CustomerModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewNotFoundError("customer", id)
			}
			return err
		}

		c := model.ToDomain()
		changed := c.Apply(patch)
		if len(changed) > 0 {
			updates := lo.SliceToMap(changed, func(field string) (string, any) {
				return field, c.Value(field)
			})
			for field, column := range models.FoldedColumns {
				if v, ok := updates[field].(string); ok {
					updates[column] = models.FoldCase(v)
				}
			}
			if err := tx.Model(&models.CustomerModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}

		merged = c
		return nil
	})
	if err != nil {
		if shared.IsNotFoundError(err) {
			return nil, err
		}
		return nil, shared.NewStorageError("update customer", err)
	}
	return merged, nil
}

// Ensure GormCustomerRepository implements customer.Repository
var _ customer.Repository = (*GormCustomerRepository)(nil)
