package businesses

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/internal/repo"
	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
)

// Repository reads and seeds businesses.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

// FindByID loads the business. It returns gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	found, err := r.base.FindByID(ctx, &business, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gorm.ErrRecordNotFound
	}
	return &business, nil
}

// Exists reports whether a business with id is present.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.base.DB(ctx).Model(&models.Business{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a business with the given name.
func (r *Repository) Create(ctx context.Context, name string) (*models.Business, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business name is required")
	}
	business := &models.Business{Name: name}
	if err := r.base.DB(ctx).Create(business).Error; err != nil {
		return nil, err
	}
	return business, nil
}
