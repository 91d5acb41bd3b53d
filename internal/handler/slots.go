package handler

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

type SlotHandler struct {
	slots  *service.SlotGenerator
	logger *zap.Logger
}

// List свободные слоты преподавателя на ?date=YYYY-MM-DD. С include_booked=true
// возвращаются и занятые, с флагом available=false.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	tutorID, err := uuidParam(r, "tutorID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, badRequest{msg: "date is required in YYYY-MM-DD format"})
		return
	}

	var slots []model.Slot
	if r.URL.Query().Get("include_booked") == "true" {
		slots, err = h.slots.Generate(r.Context(), tutorID, date)
	} else {
		slots, err = h.slots.Available(r.Context(), tutorID, date)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if slots == nil {
		slots = []model.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}
