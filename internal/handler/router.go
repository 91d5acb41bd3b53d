// Package handler HTTP API сервиса расписания.
package handler

import (
	"net/http"

	"github.com/Freeeeeet/lesson_scheduler/internal/metrics"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// WebhookParser проверяет вебхук платёжного провайдера и извлекает сессию и бронирование.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (notice service.PaymentNotice, ok bool, err error)
}

type Deps struct {
	Availability *service.AvailabilityService
	Slots        *service.SlotGenerator
	Ledger       *service.BookingLedger
	Payments     *service.PaymentGate
	Profiles     service.ProfileRepository
	Webhooks     WebhookParser
	Logger       *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	availability := &AvailabilityHandler{svc: d.Availability, logger: d.Logger}
	slots := &SlotHandler{slots: d.Slots, logger: d.Logger}
	bookings := &BookingHandler{ledger: d.Ledger, logger: d.Logger}
	payments := &PaymentHandler{gate: d.Payments, ledger: d.Ledger, webhooks: d.Webhooks, logger: d.Logger}
	profiles := &ProfileHandler{repo: d.Profiles, slots: d.Slots, logger: d.Logger}

	// Публичный просмотр расписания
	r.Get("/tutors/{tutorID}/availability", availability.List)
	r.Get("/tutors/{tutorID}/slots", slots.List)
	r.Post("/payments/webhook", payments.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(identity)

		r.Post("/tutors/{tutorID}/availability", availability.Create)
		r.Patch("/availability/{ruleID}", availability.SetActive)
		r.Delete("/availability/{ruleID}", availability.Delete)

		r.Post("/bookings", bookings.Create)
		r.Get("/bookings/{bookingID}", bookings.Get)
		r.Get("/tutors/{tutorID}/bookings", bookings.ListForTutor)
		r.Get("/students/{studentID}/bookings", bookings.ListForStudent)
		r.Post("/bookings/{bookingID}/confirm", bookings.Confirm)
		r.Post("/bookings/{bookingID}/reject", bookings.Reject)
		r.Post("/bookings/{bookingID}/cancel", bookings.Cancel)
		r.Post("/bookings/{bookingID}/complete", bookings.Complete)

		r.Post("/bookings/{bookingID}/payment", payments.Initiate)
		r.Post("/bookings/{bookingID}/payment/reconcile", payments.Reconcile)

		r.Put("/profiles/{userID}", profiles.Upsert)
	})

	return r
}
