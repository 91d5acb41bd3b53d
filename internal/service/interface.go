package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
)

// AvailabilityRepository хранит правила доступности.
// Create возвращает ErrDuplicate, если совпадающее активное правило уже есть.
type AvailabilityRepository interface {
	Create(ctx context.Context, rule *model.AvailabilityRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityRule, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.AvailabilityRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTutor(ctx context.Context, tutorID uuid.UUID, activeOnly bool) ([]*model.AvailabilityRule, error)
}

// BookingMutation меняет бронирование внутри блокирующей транзакции.
// Возврат ошибки отменяет запись.
type BookingMutation func(b *model.Booking) error

// BookingRepository хранилище бронирований.
// Create атомарно проверяет пересечение с pending/confirmed бронированиями
// преподавателя и вставляет запись, иначе ErrSlotUnavailable.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error)
	Update(ctx context.Context, id uuid.UUID, mutate BookingMutation) (*model.Booking, error)
	ListByTutor(ctx context.Context, tutorID uuid.UUID, r *model.DateRange) ([]*model.Booking, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, r *model.DateRange) ([]*model.Booking, error)
	ListHolding(ctx context.Context, tutorID uuid.UUID, from, to time.Time) ([]*model.Booking, error)
	ListConfirmedEndedBefore(ctx context.Context, t time.Time) ([]*model.Booking, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time) ([]*model.Booking, error)
}

// ProfileRepository данные профилей, доступные на чтение.
type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	Upsert(ctx context.Context, p *model.Profile) error
}

// EventPublisher получает события сохранённых изменений. Ошибки доставки
// остаются внутри публикатора.
type EventPublisher interface {
	Publish(ctx context.Context, event model.BookingEvent)
}

// SlotCache кэш кандидатов слотов по преподавателю и дате. Промах не ошибка.
// Get возвращает версию кэша преподавателя на момент чтения; Set пишет под этой
// версией, поэтому кандидаты, посчитанные до InvalidateTutor, больше не читаются.
type SlotCache interface {
	Get(ctx context.Context, tutorID uuid.UUID, date string) (slots []model.Slot, version int64, ok bool)
	Set(ctx context.Context, tutorID uuid.UUID, version int64, date string, slots []model.Slot)
	InvalidateTutor(ctx context.Context, tutorID uuid.UUID)
}

type CheckoutRequest struct {
	BookingID   uuid.UUID
	AmountCents int64
	Currency    string
	Description string
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// ProviderPaymentStatus состояние сессии на стороне платёжного провайдера.
type ProviderPaymentStatus string

const (
	ProviderStatusUnpaid ProviderPaymentStatus = "unpaid"
	ProviderStatusPaid   ProviderPaymentStatus = "paid"
	ProviderStatusFailed ProviderPaymentStatus = "failed"
)

// PaymentProvider внешний платёжный провайдер.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSessionStatus(ctx context.Context, sessionID string) (ProviderPaymentStatus, error)
	// ExpireSession закрывает открытую сессию, чтобы по ней больше нельзя было заплатить.
	ExpireSession(ctx context.Context, sessionID string) error
}

// PaymentNotice уведомление провайдера о сессии. BookingID берётся из метаданных
// сессии и может быть uuid.Nil. Failed означает, что отложенный платёж отклонён.
type PaymentNotice struct {
	SessionID string
	BookingID uuid.UUID
	Failed    bool
}

// MeetingLinkGenerator выдаёт ссылку на онлайн-встречу для бронирования.
type MeetingLinkGenerator interface {
	NewLink(booking *model.Booking) string
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.BookingEvent) {}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID, string) ([]model.Slot, int64, bool) {
	return nil, 0, false
}
func (noopCache) Set(context.Context, uuid.UUID, int64, string, []model.Slot) {}
func (noopCache) InvalidateTutor(context.Context, uuid.UUID)                 {}
