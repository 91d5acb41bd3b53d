package handler

import (
	"io"
	"net/http"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	gate     *service.PaymentGate
	ledger   *service.BookingLedger
	webhooks WebhookParser
	logger   *zap.Logger
}

// Initiate начинает оплату бронирования студента.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	booking, ok := loadBooking(w, r, h.ledger, h.logger, func(c Caller, b *model.Booking) bool {
		return c.Is(b.StudentID)
	})
	if !ok {
		return
	}

	handle, err := h.gate.Initiate(r.Context(), booking.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

// Reconcile опрос оплаты клиентом после возврата со страницы оплаты.
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	booking, ok := loadBooking(w, r, h.ledger, h.logger, func(c Caller, b *model.Booking) bool {
		return c.Is(b.StudentID) || c.Is(b.TutorID)
	})
	if !ok {
		return
	}

	if _, err := h.gate.Reconcile(r.Context(), booking.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.ledger.Get(r.Context(), booking.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Webhook принимает уведомления провайдера. Неизвестные сессии подтверждаются,
// чтобы провайдер перестал их повторять.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "payments are not configured"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, h.logger, badRequest{msg: "read body: " + err.Error()})
		return
	}

	notice, relevant, err := h.webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected payment webhook", zap.Error(err))
		writeError(w, h.logger, badRequest{msg: "invalid webhook"})
		return
	}
	if !relevant {
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := h.gate.ReconcileSession(r.Context(), notice)
	switch {
	case err == nil:
		h.logger.Info("payment webhook processed",
			zap.String("session_id", notice.SessionID),
			zap.String("payment_status", string(status)),
		)
		w.WriteHeader(http.StatusOK)
	case isNotFound(err):
		h.logger.Warn("payment webhook for unknown session", zap.String("session_id", notice.SessionID))
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, h.logger, err)
	}
}
