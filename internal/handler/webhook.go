package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rwa-shop-backend/internal/config"
	"rwa-shop-backend/internal/dto"
	"rwa-shop-backend/internal/model"
	"rwa-shop-backend/internal/service"

	"github.com/labstack/echo/v4"
)

const providerStripe = "stripe"

type WebhookHandler struct {
	paymentService service.PaymentService
	cfg            config.Stripe
}

func NewWebhookHandler(paymentService service.PaymentService, cfg config.Stripe) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		cfg:            cfg,
	}
}

// StripeWebhook receives Stripe events. Signature verification happens
// before anything else; an unverified payload never reaches the event
// ledger. Events that fail business validation are still acked with 200 so
// Stripe stops retrying — they are claimed, logged and left for manual
// reconciliation.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := verifyStripeSignature(
		h.cfg.WebhookSecret,
		c.Request().Header.Get("Stripe-Signature"),
		body,
		h.cfg.SignatureTolerance,
		time.Now(),
	); err != nil {
		slog.Warn("stripe signature rejected", "error", err)
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid signature"})
	}

	var event model.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload"})
	}

	if event.Type != "checkout.session.completed" {
		// Not a settlement event; ack and move on.
		return c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
	}

	session := event.Data.Object
	confirmed := &service.PaymentConfirmed{
		EventID:          event.ID,
		Provider:         providerStripe,
		EventType:        event.Type,
		Payload:          string(body),
		OrderID:          session.Metadata.OrderID,
		PayRef:           session.PayRef(),
		AmountMinorUnits: session.AmountTotal,
		Currency:         session.Currency,
		WalletAddress:    session.Metadata.WalletAddress,
	}

	_, err = h.paymentService.HandlePaymentConfirmed(ctx, confirmed)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) ||
			errors.Is(err, service.ErrAmountMismatch) ||
			errors.Is(err, service.ErrPayRefConflict) {
			// Fail-closed: the event stays claimed and will not retry.
			slog.Error("payment event rejected", "event_id", event.ID, "error", err)
			return c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
		}
		// Storage failure: the transaction rolled back, let Stripe retry.
		return fmt.Errorf("handle payment event %s: %w", event.ID, err)
	}

	return c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}

// verifyStripeSignature checks the Stripe-Signature header scheme: the
// header carries t=<unix ts> and one or more v1=<hex hmac-sha256 of
// "<t>.<body>" keyed with the webhook secret>. The timestamp must be within
// tolerance of now.
func verifyStripeSignature(secret, header string, body []byte, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}
	if header == "" {
		return errors.New("missing Stripe-Signature header")
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("bad timestamp: %w", err)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return errors.New("malformed Stripe-Signature header")
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("timestamp outside tolerance: %s", age)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
