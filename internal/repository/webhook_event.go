package repository

import (
	"context"
	"errors"

	"rwa-shop-backend/internal/model"

	"gorm.io/gorm"
)

// WebhookEventRepository is the event ledger: the sole admission-control gate
// for the payment pipeline. A provider event id is processed at most once.
type WebhookEventRepository interface {
	// TryClaim inserts a placeholder row keyed by the provider event id.
	// Returns true if this is the first time the event is seen, false on a
	// duplicate. Any other storage error propagates.
	TryClaim(ctx context.Context, eventID, provider string) (bool, error)
	// Record is the single enrichment update after a successful claim.
	Record(ctx context.Context, eventID, eventType, payload string) error
	FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) TryClaim(ctx context.Context, eventID, provider string) (bool, error) {
	err := r.db.WithContext(ctx).Create(&model.WebhookEvent{
		EventID:  eventID,
		Provider: provider,
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *webhookEventRepositoryImpl) Record(ctx context.Context, eventID, eventType, payload string) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"event_type": eventType,
			"payload":    payload,
		}).Error
}

func (r *webhookEventRepositoryImpl) FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}
