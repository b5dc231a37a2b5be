package repository

import (
	"context"
	"errors"

	"rwa-shop-backend/internal/model"

	"gorm.io/gorm"
)

type ReferralRepository interface {
	// FindByUserID returns the buyer's referral chain, or nil when the user
	// has no upline (not an error).
	FindByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Referral, error)
}

type referralRepoImpl struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepoImpl{db: db}
}

func (r *referralRepoImpl) FindByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Referral, error) {
	db := r.db
	if tx != nil {
		db = tx
	}

	var referral model.Referral
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}
