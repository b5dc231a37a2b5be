package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rwa-shop-backend/internal/config"
	"rwa-shop-backend/internal/model"
	"rwa-shop-backend/internal/repository"

	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound means the event referenced an unknown order. The
	// event claim is kept: the event will not be retried and needs manual
	// reconciliation.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAmountMismatch means the provider amount deviated from the order
	// amount beyond tolerance, or the currency is unsupported. Fail-closed:
	// the order is never mutated on unverified amounts, and the claim is
	// kept.
	ErrAmountMismatch = errors.New("amount mismatch")
	// ErrPayRefConflict means the order is already paid under a different
	// settlement reference.
	ErrPayRefConflict = errors.New("pay ref conflict")
)

// Result reasons for events that were consumed without applying anything.
const (
	ReasonDuplicate   = "duplicate"
	ReasonAlreadyPaid = "already_paid"
)

// PaymentConfirmed is a verified provider notification that a payment
// settled. Signature verification happens before this is built; an
// unverified payload never reaches the ledger.
type PaymentConfirmed struct {
	EventID          string
	Provider         string
	EventType        string
	Payload          string
	OrderID          string
	PayRef           string
	AmountMinorUnits int64
	Currency         string
	WalletAddress    string
}

type PaymentResult struct {
	// Applied is true when this event transitioned the order to paid.
	Applied bool
	// Reason explains a non-applied result: duplicate or already_paid.
	Reason         string
	Order          *model.Order
	Commissions    []*model.Commission
	MintJobCreated bool
}

type PaymentService interface {
	HandlePaymentConfirmed(ctx context.Context, ev *PaymentConfirmed) (*PaymentResult, error)
}

type paymentServiceImpl struct {
	db            *gorm.DB
	cfg           config.Payment
	webhookRepo   repository.WebhookEventRepository
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	referralRepo  repository.ReferralRepository
	mintJobRepo   repository.MintJobRepository
	commissionSvc CommissionService
}

func NewPaymentService(
	db *gorm.DB,
	cfg config.Payment,
	webhookRepo repository.WebhookEventRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	referralRepo repository.ReferralRepository,
	mintJobRepo repository.MintJobRepository,
	commissionSvc CommissionService,
) PaymentService {
	return &paymentServiceImpl{
		db:            db,
		cfg:           cfg,
		webhookRepo:   webhookRepo,
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		referralRepo:  referralRepo,
		mintJobRepo:   mintJobRepo,
		commissionSvc: commissionSvc,
	}
}

// HandlePaymentConfirmed processes one settled-payment event exactly once:
// claim the event id, validate the amount, atomically mark the order paid and
// fan out commissions, then enqueue the mint job outside the transaction.
func (s *paymentServiceImpl) HandlePaymentConfirmed(ctx context.Context, ev *PaymentConfirmed) (*PaymentResult, error) {
	claimed, err := s.webhookRepo.TryClaim(ctx, ev.EventID, ev.Provider)
	if err != nil {
		return nil, fmt.Errorf("claim event %s: %w", ev.EventID, err)
	}
	if !claimed {
		slog.Info("duplicate event ignored", "event_id", ev.EventID)
		return &PaymentResult{Applied: false, Reason: ReasonDuplicate}, nil
	}

	if err := s.webhookRepo.Record(ctx, ev.EventID, ev.EventType, ev.Payload); err != nil {
		// The claim already exists; losing the enrichment only costs the
		// reconciliation trail.
		slog.Error("record event payload failed", "event_id", ev.EventID, "error", err)
	}

	order, err := s.orderRepo.FindByID(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event %s: %w: %s", ev.EventID, ErrOrderNotFound, ev.OrderID)
		}
		return nil, fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}

	if err := s.validateAmount(order, ev.AmountMinorUnits, ev.Currency); err != nil {
		return nil, fmt.Errorf("event %s order %s: %w", ev.EventID, order.ID, err)
	}

	result := &PaymentResult{Order: order}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.MarkPaid(ctx, tx, order.ID, ev.PayRef)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		if rows == 0 {
			current, err := s.orderRepo.FindByIDTx(ctx, tx, order.ID)
			if err != nil {
				return fmt.Errorf("reload order: %w", err)
			}
			if current.Status == model.OrderPaid && current.PayRef == ev.PayRef {
				// Webhook replay on the business key; everything was
				// already applied.
				result.Order = current
				result.Reason = ReasonAlreadyPaid
				return nil
			}
			return fmt.Errorf("order %s status %s payRef %q: %w",
				current.ID, current.Status, current.PayRef, ErrPayRefConflict)
		}

		referral, err := s.referralRepo.FindByUserID(ctx, tx, order.UserID)
		if err != nil {
			return fmt.Errorf("load referral chain: %w", err)
		}
		var uplines []string
		if referral != nil {
			uplines = referral.Uplines()
		}

		commissions, err := s.commissionSvc.Distribute(ctx, tx, order, uplines)
		if err != nil {
			return fmt.Errorf("distribute commissions: %w", err)
		}

		order.Status = model.OrderPaid
		order.PayRef = ev.PayRef
		result.Applied = true
		result.Commissions = commissions
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Reason == ReasonAlreadyPaid {
		return result, nil
	}

	// Mint enqueue happens outside the payment transaction: the financial
	// truth is committed and must not roll back with a failed enqueue, and
	// the enqueue is idempotent per order so a missed one is recoverable by
	// an out-of-band sweep.
	wallet := order.WalletAddress
	if wallet == "" {
		wallet = ev.WalletAddress
	}
	if wallet != "" {
		if err := s.enqueueMint(ctx, order, wallet); err != nil {
			slog.Error("mint enqueue failed", "order_id", order.ID, "error", err)
		} else {
			result.MintJobCreated = true
		}
	}

	slog.Info("payment event applied",
		"event_id", ev.EventID,
		"order_id", order.ID,
		"commissions", len(result.Commissions),
		"mint_job", result.MintJobCreated,
	)
	return result, nil
}

func (s *paymentServiceImpl) validateAmount(order *model.Order, amountMinorUnits int64, currency string) error {
	if !strings.EqualFold(currency, s.cfg.SupportedCurrency) {
		return fmt.Errorf("unsupported currency %q: %w", currency, ErrAmountMismatch)
	}

	orderMinor := order.AmountFiat.Shift(2).Round(0).IntPart()
	deviation := orderMinor - amountMinorUnits
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > s.cfg.AmountTolerance {
		return fmt.Errorf("order=%d provider=%d minor units: %w",
			orderMinor, amountMinorUnits, ErrAmountMismatch)
	}
	return nil
}

func (s *paymentServiceImpl) enqueueMint(ctx context.Context, order *model.Order, wallet string) error {
	product, err := s.productRepo.FindByID(ctx, order.ProductID)
	if err != nil {
		return fmt.Errorf("load product %s: %w", order.ProductID, err)
	}

	tokenID := product.TokenID
	if tokenID == 0 {
		tokenID = TokenIDFromSku(product.Sku)
	}

	_, err = s.mintJobRepo.Create(ctx, order.ID, wallet, tokenID, order.Qty)
	if err != nil {
		return fmt.Errorf("create mint job: %w", err)
	}
	return nil
}

// TokenIDFromSku derives a stable ERC-1155 token id from a product SKU for
// products without an explicit one.
func TokenIDFromSku(sku string) int64 {
	if sku == "" {
		return 1
	}
	var h int64
	for _, b := range []byte(sku) {
		h = (h*131 + int64(b)) % 1_000_000_007
	}
	h %= 1_000_000
	if h == 0 {
		return 1
	}
	return h
}
