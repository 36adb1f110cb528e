package http

import (
	"bytes"
	"net/http"

	"devexpense/internal/core"
	applog "devexpense/internal/log"
	"devexpense/internal/services"
)

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name,
			applog.FieldOperation, applog.OpRender)
		InternalServerError(msgTemplateFailed).Write(w)
		return
	}
	s.appMetrics.templateRenderings.Add(1)
	b.BodyHTML(buf.String()).Write(w)
}

// loadSession returns the session for the request, writing a 500 on store
// failure. ok is false when the response has already been written.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (id string, sess core.Session, ok bool) {
	id = s.sessionID(w, r)
	sess, err := s.calc.Session(r.Context(), id)
	if err != nil {
		s.storeFailure(w, r, id, applog.OpLoad, err)
		return id, core.Session{}, false
	}
	return id, sess, true
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, id, op string, err error) {
	s.logStoreFailure(r, id, op, err)
	InternalServerError(msgStoreFailure).Write(w)
}

func (s *Server) logStoreFailure(r *http.Request, id, op string, err error) {
	s.appMetrics.storeErrors.Add(1)
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Session store failure",
		err, applog.ComponentSession, op, applog.NewFields().WithSession(id))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.render(w, r, "index.html", newPageView(sess), NewHTMXResponse())
}

func (s *Server) handleCalculatorPartial(w http.ResponseWriter, r *http.Request) {
	if _, sess, ok := s.loadSession(w, r); ok {
		s.render(w, r, "calculator", newPageView(sess), NewHTMXResponse())
	}
}

func (s *Server) handleResultsPartial(w http.ResponseWriter, r *http.Request) {
	if _, sess, ok := s.loadSession(w, r); ok {
		s.render(w, r, "results", newPageView(sess), NewHTMXResponse())
	}
}

func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	if _, sess, ok := s.loadSession(w, r); ok {
		s.render(w, r, "history", newPageView(sess), NewHTMXResponse())
	}
}

// handleCalculate runs an expense calculation from the calculator form and
// re-renders the form. Rejections are shown inline and still answer 200 so
// htmx swaps the partial in.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id := s.sessionID(w, r)
	sess, err := s.calc.CalculateExpenses(r.Context(), id, ParseCalculationInputs(parser))
	if err != nil && !services.IsRejection(err) {
		s.storeFailure(w, r, id, applog.OpSave, err)
		return
	}

	resp := NewHTMXResponse()
	if err != nil {
		s.appMetrics.rejected.Add(1)
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogRejected(r.Context(), id, applog.OpCalculate, err)
	} else {
		resp.TriggerCalculationRecorded(s.recorded(r, id, sess))
	}
	s.render(w, r, "calculator", newPageView(sess), resp)
}

// handleSavings applies the savings percentage and re-renders the results
// panel. An invalid percentage changes nothing.
func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	id := s.sessionID(w, r)
	sess, err := s.calc.CalculateSavings(r.Context(), id, parser.Get("savings"))
	if err != nil && !services.IsRejection(err) {
		s.storeFailure(w, r, id, applog.OpSave, err)
		return
	}

	resp := NewHTMXResponse()
	if err == nil {
		s.appMetrics.savingsApplied.Add(1)
		resp.TriggerSavingsUpdated(sess.Result)
	}
	s.render(w, r, "results", newPageView(sess), resp)
}

// recorded counts and logs a successful calculation, returning its entry.
func (s *Server) recorded(r *http.Request, id string, sess core.Session) core.HistoryEntry {
	s.appMetrics.calculations.Add(1)
	entry, _ := sess.History.Latest()
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogCalculationRecorded(r.Context(), id, entry.ID,
		entry.Income.String(), entry.TotalExpenses.String(), entry.Balance.String())
	return entry
}
