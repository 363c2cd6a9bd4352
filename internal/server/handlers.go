package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/export"
	"github.com/KaramelBytes/co2lens-cli/internal/hero"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
)

// errBadRequest marks client errors that are not schema or validation failures.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v before touching the response so an unencodable value
// still becomes a clean 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		b, _ = json.Marshal(errorBody{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(b, '\n')); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

// fail maps err to a status: schema, validation, and malformed input are 400.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, dataset.ErrInvalidSchema), errors.As(err, &verrs), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status >= 500 {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// filterFromQuery reads ?entities=a,b&from=2000&to=2020.
func filterFromQuery(r *http.Request) (dataset.Filter, error) {
	q := r.URL.Query()
	var f dataset.Filter
	for _, e := range strings.Split(q.Get("entities"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			f.Entities = append(f.Entities, e)
		}
	}
	var err error
	if f.FromPeriod, err = intParam(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.ToPeriod, err = intParam(q.Get("to"), "to"); err != nil {
		return f, err
	}
	return f, checkRange(f)
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer period, got %q", name, v)
	}
	return n, nil
}

func checkRange(f dataset.Filter) error {
	if err := f.Validate(); err != nil {
		return badRequest("%v", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"dataset":  s.table.Name,
		"records":  s.table.Len(),
		"sessions": s.store != nil,
	})
}

type summaryResponse struct {
	Filter   string            `json:"filter"`
	Overview analysis.Overview `json:"overview"`
	Quality  analysis.Quality  `json:"quality"`
	Schema   dataset.Schema    `json:"schema"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := f.Apply(s.table)
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Filter:   f.Describe(),
		Overview: analysis.Summarize(t, s.topN),
		Quality:  analysis.AssessQuality(t),
		Schema:   t.Schema,
		Warnings: t.Warnings,
	})
}

func (s *Server) anomalies(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	as := analysis.DetectAnomalies(f.Apply(s.table))
	s.metrics.anomalies.Set(float64(len(as)))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":           len(as),
		"anomalies":       as,
		"recommendations": analysis.AnomalyRecommendations(as),
	})
}

type recommendRequest struct {
	Query       string            `json:"query" validate:"max=2000"`
	Entities    []string          `json:"entities" validate:"omitempty,max=500,dive,required,max=200"`
	FromPeriod  int               `json:"from_period" validate:"omitempty,gte=0,lte=9999"`
	ToPeriod    int               `json:"to_period" validate:"omitempty,gte=0,lte=9999"`
	Preferences map[string]string `json:"preferences"`
	SessionID   string            `json:"session_id" validate:"omitempty,max=128"`
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.fail(w, r, badRequest("invalid JSON body: %v", err))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, err)
		return
	}
	f := dataset.Filter{Entities: body.Entities, FromPeriod: body.FromPeriod, ToPeriod: body.ToPeriod}
	if err := checkRange(f); err != nil {
		s.fail(w, r, err)
		return
	}
	prefs, err := advisor.ParsePreferences(body.Preferences)
	if err != nil {
		s.fail(w, r, badRequest("%v", err))
		return
	}

	resp, err := s.advisor.Recommend(f.Apply(s.table), advisor.Request{Query: body.Query, Filter: f, Preferences: prefs})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.recommendations.WithLabelValues(resp.Category.String()).Inc()

	if body.SessionID != "" && s.store != nil {
		sid := s.sessionKey(body.SessionID)
		evs := append(hero.ExploreEvents(f.Entities, f.FromPeriod, f.ToPeriod), hero.EventForResponse(resp))
		if _, err := s.store.AppendEvents(r.Context(), sid, evs); err != nil {
			// the answer stands even if progress could not be recorded
			s.logger.Warn("record question event", zap.String("session_id", sid), zap.Error(err))
		} else {
			for _, e := range evs {
				s.metrics.events.WithLabelValues(string(e.Kind)).Inc()
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) exportData(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.fail(w, r, badRequest("%v", err))
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := f.Apply(s.table)
	b := export.Bundle{Table: t, Filter: f, TopN: s.topN}
	if q := r.URL.Query().Get("query"); q != "" {
		resp, err := s.advisor.Recommend(t, advisor.Request{Query: q, Filter: f})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		b.Response = resp
	}

	// Encode before writing headers so an error can still become a 4xx/5xx.
	var buf strings.Builder
	if err := export.Write(&buf, format, b); err != nil {
		s.fail(w, r, err)
		return
	}
	if sid := r.URL.Query().Get("session_id"); sid != "" && s.store != nil {
		sid = s.sessionKey(sid)
		if _, err := s.store.AppendEvent(r.Context(), sid, hero.ExportEvent(string(format))); err != nil {
			s.logger.Warn("record export event", zap.String("session_id", sid), zap.Error(err))
		} else {
			s.metrics.events.WithLabelValues(string(hero.KindDataExported)).Inc()
		}
	}
	name := "co2lens-export." + format.Ext()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "session tracking is disabled"})
		return false
	}
	return true
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	p, err := s.store.Progress(r.Context(), s.sessionKey(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// sessionKey maps a saved session's name or id to the id its events are
// stored under. Unknown keys are used as given.
func (s *Server) sessionKey(raw string) string {
	if s.sessDir == "" {
		return raw
	}
	sess, err := session.FindByID(s.sessDir, raw)
	if err != nil {
		return raw
	}
	return sess.ID
}

type eventRequest struct {
	Kind     string   `json:"kind" validate:"required"`
	Entities []string `json:"entities" validate:"omitempty,dive,required"`
	From     int      `json:"from" validate:"omitempty,gte=0,lte=9999"`
	To       int      `json:"to" validate:"omitempty,lte=9999,gtefield=From"`
	Category string   `json:"category"`
	Format   string   `json:"format"`
}

type eventsRequest struct {
	Events []eventRequest `json:"events" validate:"required,min=1,max=100,dive"`
}

func (s *Server) recordEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var body eventsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.fail(w, r, badRequest("invalid JSON body: %v", err))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, err)
		return
	}
	evs := make([]hero.Event, 0, len(body.Events))
	for _, in := range body.Events {
		k := hero.Kind(in.Kind)
		if !k.Valid() {
			s.fail(w, r, badRequest("unknown event kind %q", in.Kind))
			return
		}
		if in.Category != "" {
			if _, err := advisor.ParseCategory(in.Category); err != nil {
				s.fail(w, r, badRequest("%v", err))
				return
			}
		}
		if in.From != 0 && in.To-in.From >= hero.MaxPeriodSpan {
			s.fail(w, r, badRequest("period span %d-%d exceeds %d periods", in.From, in.To, hero.MaxPeriodSpan))
			return
		}
		e := hero.NewEvent(k)
		e.Entities, e.From, e.To = in.Entities, in.From, in.To
		e.Category, e.Format = in.Category, in.Format
		evs = append(evs, e)
	}
	id := s.sessionKey(chi.URLParam(r, "id"))
	if _, err := s.store.AppendEvents(r.Context(), id, evs); err != nil {
		s.fail(w, r, err)
		return
	}
	for _, e := range evs {
		s.metrics.events.WithLabelValues(string(e.Kind)).Inc()
	}
	p, err := s.store.Progress(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}
