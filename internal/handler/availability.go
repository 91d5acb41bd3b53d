package handler

import (
	"net/http"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	svc    *service.AvailabilityService
	logger *zap.Logger
}

type createRuleRequest struct {
	DayOfWeek int             `json:"day_of_week"`
	StartTime model.TimeOfDay `json:"start_time"`
	EndTime   model.TimeOfDay `json:"end_time"`
}

type setActiveRequest struct {
	Active *bool `json:"is_active"`
}

// List активные правила, с ?all=true все.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	tutorID, err := uuidParam(r, "tutorID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var rules []*model.AvailabilityRule
	if r.URL.Query().Get("all") == "true" {
		rules, err = h.svc.ListRules(r.Context(), tutorID)
	} else {
		rules, err = h.svc.ListActive(r.Context(), tutorID)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if rules == nil {
		rules = []*model.AvailabilityRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	tutorID, err := uuidParam(r, "tutorID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !caller.Is(tutorID) {
		writeError(w, h.logger, errForbidden)
		return
	}

	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rule, err := h.svc.AddRule(r.Context(), tutorID, req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *AvailabilityHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Active == nil {
		writeError(w, h.logger, badRequest{msg: "is_active is required"})
		return
	}

	updated, err := h.svc.SetActive(r.Context(), rule.ID, *req.Active)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}

	if err := h.svc.Remove(r.Context(), rule.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) ownedRule(w http.ResponseWriter, r *http.Request) (*model.AvailabilityRule, bool) {
	caller, err := mustCaller(r)
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	ruleID, err := uuidParam(r, "ruleID")
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}

	rule, err := h.svc.Get(r.Context(), ruleID)
	if err != nil {
		writeError(w, h.logger, err)
		return nil, false
	}
	if !caller.Is(rule.TutorID) {
		writeError(w, h.logger, errForbidden)
		return nil, false
	}
	return rule, true
}
