package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	repo   service.ProfileRepository
	slots  *service.SlotGenerator
	logger *zap.Logger
}

type profileRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	TelegramChatID  *int64 `json:"telegram_chat_id,omitempty"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	Timezone        string `json:"timezone"`
}

// Upsert сохраняет нужные расписанию поля профиля, которые присылает
// сервис профилей.
func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !caller.Is(userID) {
		writeError(w, h.logger, errForbidden)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.HourlyRateCents < 0 {
		writeError(w, h.logger, badRequest{msg: "hourly_rate_cents must not be negative"})
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, h.logger, badRequest{msg: "unknown timezone " + req.Timezone})
		return
	}

	p := &model.Profile{
		UserID:          userID,
		FullName:        req.FullName,
		Email:           req.Email,
		TelegramChatID:  req.TelegramChatID,
		HourlyRateCents: req.HourlyRateCents,
		Timezone:        req.Timezone,
	}
	if err := h.repo.Upsert(r.Context(), p); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.slots.Invalidate(r.Context(), userID)

	writeJSON(w, http.StatusOK, p)
}

func isNotFound(err error) bool {
	return errors.Is(err, service.ErrNotFound)
}
