package repository

import (
	"context"
	"errors"
	"storefront-checkout/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// CreateIfAbsent inserts the order and its items unless an order with
	// the same payment_ref already exists. Returns the stored order and
	// whether this call created it.
	CreateIfAbsent(ctx context.Context, order *model.Order, items []*model.OrderItem) (*model.Order, bool, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Order, error)
	MarkPaid(ctx context.Context, paymentRef string) error
	MarkFailed(ctx context.Context, paymentRef string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) CreateIfAbsent(ctx context.Context, order *model.Order, items []*model.OrderItem) (*model.Order, bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_ref"}},
			DoNothing: true,
		}).Create(order)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// Someone got here first with the same payment ref.
			return tx.Where("payment_ref = ?", order.PaymentRef).First(order).Error
		}

		created = true
		for _, item := range items {
			item.OrderID = order.OrderID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return order, created, nil
}

func (r *orderRepoImpl) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, paymentRef string) error {
	return r.markStatus(ctx, paymentRef, model.OrderStatusPaid, []string{model.OrderStatusPending})
}

func (r *orderRepoImpl) MarkFailed(ctx context.Context, paymentRef string) error {
	return r.markStatus(ctx, paymentRef, model.OrderStatusFailed, []string{model.OrderStatusPending})
}

func (r *orderRepoImpl) markStatus(ctx context.Context, paymentRef, status string, from []string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("payment_ref = ? AND status IN ?", paymentRef, from).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already in the target or a terminal state. Treat as a no-op so
		// webhook replays and duplicate signals stay idempotent.
		var count int64
		err := r.db.WithContext(ctx).Model(&model.Order{}).
			Where("payment_ref = ?", paymentRef).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return errors.New("order not found: " + paymentRef)
		}
	}
	return nil
}
