package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

// QueryDateLayout is the accepted format of the since and until parameters.
const QueryDateLayout = "2006-01-02"

type listResponse struct {
	Breaches []breach.Breach `json:"breaches"`
	Count    int             `json:"count"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

type statesResponse struct {
	States []breach.StateSummary `json:"states"`
}

func (s *Server) listBreaches(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondList(w, r, filter)
}

func (s *Server) stateBreaches(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.State = chi.URLParam(r, "state")
	s.respondList(w, r, filter)
}

func (s *Server) respondList(w http.ResponseWriter, r *http.Request, filter breach.Filter) {
	filter, err := filter.Normalize()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list breaches failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list breaches")
		return
	}
	if rows == nil {
		rows = []breach.Breach{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{
		Breaches: rows,
		Count:    len(rows),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

func (s *Server) getBreach(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	b, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, breach.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "breach not found")
	case err != nil:
		s.logger.Error("get breach failed", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load breach")
	default:
		s.writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	archived, err := parseOptionalBool(r.URL.Query(), "archived")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	states, err := s.store.SummarizeStates(r.Context(), archived)
	if err != nil {
		s.logger.Error("summarize states failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to summarize states")
		return
	}
	if states == nil {
		states = []breach.StateSummary{}
	}
	s.writeJSON(w, http.StatusOK, statesResponse{States: states})
}

func parseFilter(q url.Values) (breach.Filter, error) {
	var (
		f   breach.Filter
		err error
	)
	f.State = q.Get("state")
	if f.Archive, err = parseOptionalBool(q, "archived"); err != nil {
		return f, err
	}
	if f.Since, err = parseOptionalDate(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseOptionalDate(q, "until"); err != nil {
		return f, err
	}
	if f.Order, err = breach.ParseOrder(q.Get("order")); err != nil {
		return f, err
	}
	if f.Limit, err = parseOptionalInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseOptionalInt(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseOptionalBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &v, nil
}

func parseOptionalDate(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(QueryDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date formatted YYYY-MM-DD", key)
	}
	return &t, nil
}

func parseOptionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
