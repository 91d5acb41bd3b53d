// Package payment платёжный провайдер на Stripe Checkout.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const bookingPlaceholder = "{BOOKING_ID}"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type StripeProvider struct {
	api    *client.API
	cfg    StripeConfig
	logger *zap.Logger
}

func NewStripeProvider(cfg StripeConfig, logger *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeProvider{api: api, cfg: cfg, logger: logger}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutSession, error) {
	params := checkoutParams(p.cfg, req)
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &service.CheckoutSession{ID: s.ID, RedirectURL: s.URL}, nil
}

func (p *StripeProvider) GetSessionStatus(ctx context.Context, sessionID string) (service.ProviderPaymentStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("stripe get checkout session: %w", err)
	}
	return sessionStatus(s), nil
}

func (p *StripeProvider) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := p.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe expire checkout session: %w", err)
	}
	return nil
}

// ParseWebhook проверяет подпись и возвращает сессию и бронирование для событий,
// которые могут изменить оплату. ok=false для остальных типов событий.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (service.PaymentNotice, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return service.PaymentNotice{}, false, fmt.Errorf("verify stripe webhook: %w", err)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
	default:
		p.logger.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return service.PaymentNotice{}, false, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return service.PaymentNotice{}, false, fmt.Errorf("decode checkout session: %w", err)
	}
	notice := sessionNotice(&s)
	notice.Failed = event.Type == stripe.EventTypeCheckoutSessionAsyncPaymentFailed
	return notice, true, nil
}

// sessionNotice берёт бронирование из metadata.booking_id, иначе из client_reference_id.
func sessionNotice(s *stripe.CheckoutSession) service.PaymentNotice {
	notice := service.PaymentNotice{SessionID: s.ID}

	ref := s.Metadata["booking_id"]
	if ref == "" {
		ref = s.ClientReferenceID
	}
	if id, err := uuid.Parse(ref); err == nil {
		notice.BookingID = id
	}
	return notice
}

func checkoutParams(cfg StripeConfig, req service.CheckoutRequest) *stripe.CheckoutSessionParams {
	bookingID := req.BookingID.String()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(strings.ReplaceAll(cfg.SuccessURL, bookingPlaceholder, bookingID)),
		CancelURL:         stripe.String(strings.ReplaceAll(cfg.CancelURL, bookingPlaceholder, bookingID)),
		ClientReferenceID: stripe.String(bookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("booking_id", bookingID)
	return params
}

func sessionStatus(s *stripe.CheckoutSession) service.ProviderPaymentStatus {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return service.ProviderStatusPaid
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return service.ProviderStatusFailed
	default:
		return service.ProviderStatusUnpaid
	}
}
