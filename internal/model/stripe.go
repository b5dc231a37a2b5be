package model

// Wire shapes for the subset of Stripe webhook payloads we consume.

type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object StripeCheckoutSession `json:"object"`
	} `json:"data"`
}

type StripeSessionMetadata struct {
	OrderID       string `json:"orderId"`
	WalletAddress string `json:"walletAddress"`
}

type StripeCheckoutSession struct {
	ID            string                `json:"id"`
	PaymentIntent string                `json:"payment_intent"`
	AmountTotal   int64                 `json:"amount_total"` // minor units
	Currency      string                `json:"currency"`
	CustomerEmail string                `json:"customer_email"`
	Metadata      StripeSessionMetadata `json:"metadata"`
}

// PayRef returns the settlement reference recorded on the order: the payment
// intent when present, otherwise the session id.
func (s *StripeCheckoutSession) PayRef() string {
	if s.PaymentIntent != "" {
		return s.PaymentIntent
	}
	return s.ID
}
