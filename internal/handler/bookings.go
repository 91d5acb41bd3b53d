package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	ledger *service.BookingLedger
	logger *zap.Logger
}

type createBookingRequest struct {
	TutorID         uuid.UUID  `json:"tutor_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	CenterID        *uuid.UUID `json:"center_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

type confirmRequest struct {
	MeetingLink string `json:"meeting_link"`
}

// Create бронирует окно для студента, сделавшего запрос.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.TutorID == uuid.Nil {
		writeError(w, h.logger, badRequest{msg: "tutor_id is required"})
		return
	}

	booking, err := h.ledger.Create(r.Context(), service.CreateBookingInput{
		StudentID:       caller.UserID,
		TutorID:         req.TutorID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		CenterID:        req.CenterID,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.participantBooking(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) ListForTutor(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "tutorID", h.ledger.ListForTutor)
}

func (h *BookingHandler) ListForStudent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "studentID", h.ledger.ListForStudent)
}

type listFunc func(ctx context.Context, id uuid.UUID, dr *model.DateRange) ([]*model.Booking, error)

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, param string, fetch listFunc) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := uuidParam(r, param)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !caller.Is(id) {
		writeError(w, h.logger, errForbidden)
		return
	}

	dr, err := dateRangeQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	bookings, err := fetch(r.Context(), id, dr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// Confirm принятие заявки преподавателем. Оплата уже должна пройти.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.tutorBooking(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	updated, err := h.ledger.Confirm(r.Context(), booking.ID, req.MeetingLink)
	h.respond(w, updated, err)
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.tutorBooking(w, r)
	if !ok {
		return
	}
	updated, err := h.ledger.Reject(r.Context(), booking.ID)
	h.respond(w, updated, err)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.participantBooking(w, r)
	if !ok {
		return
	}
	updated, err := h.ledger.Cancel(r.Context(), booking.ID)
	h.respond(w, updated, err)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.tutorBooking(w, r)
	if !ok {
		return
	}
	updated, err := h.ledger.Complete(r.Context(), booking.ID)
	h.respond(w, updated, err)
}

func (h *BookingHandler) respond(w http.ResponseWriter, booking *model.Booking, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// participantBooking загружает бронирование, если пользователь его студент или преподаватель.
func (h *BookingHandler) participantBooking(w http.ResponseWriter, r *http.Request) (*model.Booking, bool) {
	return loadBooking(w, r, h.ledger, h.logger, func(c Caller, b *model.Booking) bool {
		return c.Is(b.StudentID) || c.Is(b.TutorID)
	})
}

func (h *BookingHandler) tutorBooking(w http.ResponseWriter, r *http.Request) (*model.Booking, bool) {
	return loadBooking(w, r, h.ledger, h.logger, func(c Caller, b *model.Booking) bool {
		return c.Is(b.TutorID)
	})
}

func loadBooking(
	w http.ResponseWriter,
	r *http.Request,
	ledger *service.BookingLedger,
	logger *zap.Logger,
	allowed func(c Caller, b *model.Booking) bool,
) (*model.Booking, bool) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, logger, err)
		return nil, false
	}
	id, err := uuidParam(r, "bookingID")
	if err != nil {
		writeError(w, logger, err)
		return nil, false
	}

	booking, err := ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, logger, err)
		return nil, false
	}
	if !allowed(caller, booking) {
		writeError(w, logger, errForbidden)
		return nil, false
	}
	return booking, true
}
