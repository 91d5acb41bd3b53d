// Package notification доставляет события бронирований людям и внешним системам
// после того, как изменение сохранено.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoAddress канал возвращает, если у получателя нет адреса для него.
var ErrNoAddress = errors.New("recipient has no address for channel")

const sendTimeout = 10 * time.Second

// Message готовое уведомление для одного получателя.
type Message struct {
	Event     model.BookingEvent
	Recipient model.Profile
	Subject   string
	HTML      string
	Text      string
}

// Channel доставляет сообщение человеку.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// EventSink получает каждое событие один раз, без учёта получателей.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, event model.BookingEvent) error
}

type recipient struct {
	userID   uuid.UUID
	other    uuid.UUID
	fallback string
}

// Dispatcher реализует service.EventPublisher. Publish только ставит в очередь,
// доставляет Run. Ошибки доставки логируются и считаются, но не возвращаются.
type Dispatcher struct {
	profiles service.ProfileRepository
	channels []Channel
	sinks    []EventSink
	queue    chan model.BookingEvent
	logger   *zap.Logger
}

func NewDispatcher(profiles service.ProfileRepository, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		profiles: profiles,
		queue:    make(chan model.BookingEvent, queueSize),
		logger:   logger,
	}
}

func (d *Dispatcher) AddChannel(c Channel) {
	d.channels = append(d.channels, c)
}

func (d *Dispatcher) AddSink(s EventSink) {
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Publish(_ context.Context, event model.BookingEvent) {
	select {
	case d.queue <- event:
	default:
		metrics.NotificationsSent.WithLabelValues("queue", "dropped").Inc()
		d.logger.Warn("notification queue full, event dropped",
			zap.String("event", string(event.Type)),
			zap.String("booking_id", event.Booking.ID.String()),
		)
	}
}

// Run доставляет события из очереди до отмены ctx, затем дочищает остаток.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher started",
		zap.Int("channels", len(d.channels)),
		zap.Int("sinks", len(d.sinks)),
	)

	for {
		select {
		case event := <-d.queue:
			d.Deliver(ctx, event)
		case <-ctx.Done():
			d.drain()
			d.logger.Info("notification dispatcher stopped")
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			d.Deliver(ctx, event)
		default:
			return
		}
	}
}

// Deliver отправляет событие получателям по всем каналам и во все приёмники.
func (d *Dispatcher) Deliver(ctx context.Context, event model.BookingEvent) {
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := sink.Publish(sctx, event)
		cancel()
		d.record(sink.Name(), event, uuid.Nil, err)
	}

	if len(d.channels) == 0 {
		return
	}

	for _, r := range recipientsOf(event) {
		to, err := d.profiles.Get(ctx, r.userID)
		if err != nil {
			d.logger.Warn("notification recipient profile unavailable",
				zap.String("user_id", r.userID.String()),
				zap.Error(err),
			)
			continue
		}

		other, err := d.profiles.Get(ctx, r.other)
		if err != nil {
			other = nil
		}

		msg, err := render(event, to, other, r.fallback)
		if err != nil {
			d.logger.Error("failed to render notification", zap.Error(err))
			continue
		}

		for _, ch := range d.channels {
			cctx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := ch.Send(cctx, msg)
			cancel()
			d.record(ch.Name(), event, r.userID, err)
		}
	}
}

func (d *Dispatcher) record(channel string, event model.BookingEvent, userID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("channel", channel),
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.Booking.ID.String()),
	}
	if userID != uuid.Nil {
		fields = append(fields, zap.String("user_id", userID.String()))
	}

	switch {
	case err == nil:
		metrics.NotificationsSent.WithLabelValues(channel, "sent").Inc()
		d.logger.Debug("notification sent", fields...)
	case errors.Is(err, ErrNoAddress):
		metrics.NotificationsSent.WithLabelValues(channel, "skipped").Inc()
	default:
		metrics.NotificationsSent.WithLabelValues(channel, "failed").Inc()
		d.logger.Error("notification failed", append(fields, zap.Error(err))...)
	}
}

// recipientsOf: новая заявка уходит преподавателю, подтверждение студенту, отмена обоим.
func recipientsOf(event model.BookingEvent) []recipient {
	b := event.Booking
	student := recipient{userID: b.StudentID, other: b.TutorID, fallback: "your tutor"}
	tutor := recipient{userID: b.TutorID, other: b.StudentID, fallback: "a student"}

	switch event.Type {
	case model.EventBookingCreated:
		return []recipient{tutor}
	case model.EventBookingConfirmed:
		return []recipient{student}
	case model.EventBookingCancelled:
		return []recipient{student, tutor}
	default:
		return nil
	}
}
