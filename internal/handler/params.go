package handler

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest{msg: "invalid path param " + name + ": " + raw}
	}
	return id, nil
}

// dateRangeQuery читает необязательные параметры "from" и "to" в RFC 3339.
func dateRangeQuery(r *http.Request) (*model.DateRange, error) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		return nil, nil
	}

	var dr model.DateRange
	for name, dst := range map[string]*time.Time{"from": &dr.From, "to": &dr.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, badRequest{msg: "invalid " + name + ": expected RFC 3339 timestamp"}
		}
		*dst = t.UTC()
	}
	return &dr, nil
}

func mustCaller(r *http.Request) (Caller, error) {
	c, ok := callerFrom(r.Context())
	if !ok {
		return Caller{}, errUnauthenticated
	}
	return c, nil
}
