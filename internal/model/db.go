package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. An order only ever moves pending -> paid (webhook
// processor) or pending -> failed (manual reconciliation).
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

// MintJob statuses.
const (
	MintJobQueued     = "queued"
	MintJobProcessing = "processing"
	MintJobSucceeded  = "succeeded"
	MintJobFailed     = "failed"
)

// Commission statuses.
const (
	CommissionPending = "pending"
	CommissionPaid    = "paid"
)

type User struct {
	ID        string `gorm:"primaryKey;size:36;not null"`
	Email     string `gorm:"size:128;uniqueIndex;not null"`
	CreatedAt time.Time
}

type Product struct {
	ID          string          `gorm:"primaryKey;size:36;not null"`
	Sku         string          `gorm:"size:64;uniqueIndex;not null"`
	Title       string          `gorm:"size:128;not null"`
	PriceFiat   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PriceCrypto decimal.Decimal `gorm:"type:decimal(30,18);not null"`
	// Explicit on-chain token id. Zero means derive from the SKU.
	TokenID   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID           string          `gorm:"primaryKey;size:36;not null"`
	UserID       string          `gorm:"size:36;index;not null"`
	ProductID    string          `gorm:"size:36;index;not null"`
	Qty          int64           `gorm:"not null"`
	AmountFiat   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AmountCrypto decimal.Decimal `gorm:"type:decimal(30,18);not null"`
	Status       string          `gorm:"size:16;index;not null"` // pending, paid, failed
	// Provider settlement reference. Set exactly once when the order is
	// marked paid; replaying the same payRef is a no-op.
	PayRef        string `gorm:"size:128;index"`
	WalletAddress string `gorm:"size:64"`
	MintHash      string `gorm:"size:80"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Referral holds the materialized upline chain for a buyer. Created by
// onboarding, read-only here.
type Referral struct {
	UserID    string `gorm:"primaryKey;size:36;not null"`
	L1        string `gorm:"size:36"`
	L2        string `gorm:"size:36"`
	L3        string `gorm:"size:36"`
	CreatedAt time.Time
}

// Uplines returns the gapless prefix of upline affiliate ids, level 1 first.
func (r *Referral) Uplines() []string {
	out := make([]string, 0, 3)
	for _, id := range []string{r.L1, r.L2, r.L3} {
		if id == "" {
			break
		}
		out = append(out, id)
	}
	return out
}

type Commission struct {
	ID          string `gorm:"primaryKey;size:36;not null"`
	OrderID     string `gorm:"size:36;not null;uniqueIndex:ux_commission_order_level,priority:1"`
	AffiliateID string `gorm:"size:36;index;not null"`
	Level       int    `gorm:"not null;uniqueIndex:ux_commission_order_level,priority:2"`
	// Amounts = order amount * rate, exact decimal math, stored at full
	// precision (a 2dp fiat amount times a 4dp rate never exceeds 4dp).
	Rate         decimal.Decimal `gorm:"type:decimal(6,4);not null"`
	AmountFiat   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	AmountCrypto decimal.Decimal `gorm:"type:decimal(30,18);not null"`
	Status       string          `gorm:"size:16;index;not null"` // pending, paid
	CreatedAt    time.Time
}

// WebhookEvent is the idempotency ledger row for an inbound provider event.
// The primary-key insert is the claim; the row is immutable afterwards except
// for one enrichment update of EventType/Payload.
type WebhookEvent struct {
	EventID   string `gorm:"primaryKey;size:128;not null"`
	Provider  string `gorm:"size:32;not null"`
	EventType string `gorm:"size:64;index"`
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
}

// MintJob is a durable on-chain mint request, at most one live job per order.
// Status transitions go through the queue's conditional-update path only.
type MintJob struct {
	ID            string `gorm:"primaryKey;size:36;not null"`
	OrderID       string `gorm:"size:36;uniqueIndex;not null"`
	WalletAddress string `gorm:"size:64;not null"`
	TokenID       int64  `gorm:"not null"`
	Amount        int64  `gorm:"not null"`
	Status        string `gorm:"size:16;index;not null"` // queued, processing, succeeded, failed
	Attempts      int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:text"`
	TxHash        string `gorm:"size:80"`
	// Earliest time the job may be claimed again; carries the retry backoff.
	NextAttemptAt time.Time `gorm:"index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
