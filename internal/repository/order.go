package repository

import (
	"context"
	"time"

	"rwa-shop-backend/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	// MarkPaid is a conditional update: pending -> paid with the given
	// payRef. Returns the number of affected rows; 0 means the order was not
	// pending anymore (the caller decides whether that is a replay or a
	// conflict).
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID, payRef string) (int64, error)
	SetMintHash(ctx context.Context, tx *gorm.DB, orderID, txHash string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	return r.FindByIDTx(ctx, nil, orderID)
}

func (r *orderRepoImpl) FindByIDTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.conn(tx).WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID, payRef string) (int64, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderPending).
		Updates(map[string]interface{}{
			"status":     model.OrderPaid,
			"pay_ref":    payRef,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) SetMintHash(ctx context.Context, tx *gorm.DB, orderID, txHash string) error {
	return r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"mint_hash":  txHash,
			"updated_at": time.Now(),
		}).Error
}
