package service

import (
	"context"
	"fmt"
	"log/slog"

	"rwa-shop-backend/internal/model"
	"rwa-shop-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commission rates per upline level. Amounts are computed with exact decimal
// multiplication and stored at full precision; a 2dp order amount times one
// of these rates never needs rounding.
var commissionRates = []decimal.Decimal{
	decimal.RequireFromString("0.06"), // level 1
	decimal.RequireFromString("0.03"), // level 2
	decimal.RequireFromString("0.01"), // level 3
}

const maxCommissionLevels = 3

type CommissionService interface {
	// Distribute creates one commission row per upline level for the order.
	// An empty chain creates nothing and is not an error. Must be called
	// with the transaction that marks the order paid, so a partial fan-out
	// can never be observed.
	Distribute(ctx context.Context, tx *gorm.DB, order *model.Order, uplines []string) ([]*model.Commission, error)
}

type commissionServiceImpl struct {
	commissionRepo repository.CommissionRepository
}

func NewCommissionService(commissionRepo repository.CommissionRepository) CommissionService {
	return &commissionServiceImpl{commissionRepo: commissionRepo}
}

func (s *commissionServiceImpl) Distribute(ctx context.Context, tx *gorm.DB, order *model.Order, uplines []string) ([]*model.Commission, error) {
	if len(uplines) > maxCommissionLevels {
		uplines = uplines[:maxCommissionLevels]
	}

	commissions := make([]*model.Commission, 0, len(uplines))
	for i, affiliateID := range uplines {
		rate := commissionRates[i]
		commission := &model.Commission{
			ID:           uuid.NewString(),
			OrderID:      order.ID,
			AffiliateID:  affiliateID,
			Level:        i + 1,
			Rate:         rate,
			AmountFiat:   order.AmountFiat.Mul(rate),
			AmountCrypto: order.AmountCrypto.Mul(rate),
			Status:       model.CommissionPending,
		}

		if err := s.commissionRepo.Create(ctx, tx, commission); err != nil {
			return nil, fmt.Errorf("create level %d commission: %w", commission.Level, err)
		}

		slog.Info("commission created",
			"order_id", order.ID,
			"affiliate_id", affiliateID,
			"level", commission.Level,
			"amount_fiat", commission.AmountFiat.String(),
		)
		commissions = append(commissions, commission)
	}

	return commissions, nil
}
