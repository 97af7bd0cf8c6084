package repository

import (
	"context"
	"storefront-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type IntentRepository interface {
	Create(ctx context.Context, intent *model.PaymentIntent) error
	FindByID(ctx context.Context, id string) (*model.PaymentIntent, error)
	// MarkStatus moves a non-terminal intent to the given status. Terminal
	// records (SUCCEEDED, FAILED) are never mutated; a retry creates a new
	// record instead.
	MarkStatus(ctx context.Context, id, status string) error
}

type intentRepoImpl struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepoImpl{db: db}
}

func (r *intentRepoImpl) Create(ctx context.Context, intent *model.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *intentRepoImpl) FindByID(ctx context.Context, id string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepoImpl) MarkStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, []string{
			model.IntentStatusSucceeded,
			model.IntentStatusFailed,
		}).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
