package payment

import (
	"context"
	"errors"

	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

var errNotConfigured = errors.New("payments are not configured")

// Disabled используется без настроенного провайдера. Оплатить можно только
// бесплатные занятия, любой вызов провайдера завершается ошибкой.
type Disabled struct{}

func (Disabled) CreateCheckoutSession(context.Context, service.CheckoutRequest) (*service.CheckoutSession, error) {
	return nil, errNotConfigured
}

func (Disabled) GetSessionStatus(context.Context, string) (service.ProviderPaymentStatus, error) {
	return "", errNotConfigured
}

func (Disabled) ExpireSession(context.Context, string) error {
	return errNotConfigured
}
