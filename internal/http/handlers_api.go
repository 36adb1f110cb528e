package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"devexpense/internal/core"
	applog "devexpense/internal/log"
	"devexpense/internal/services"
)

// apiState is the JSON view of a session.
type apiState struct {
	core.Session
	ResultShown bool `json:"result_shown"`
}

type apiError struct {
	Error         string       `json:"error"`
	InvalidFields []core.Field `json:"invalid_fields,omitempty"`
	State         *apiState    `json:"state,omitempty"`
}

type savingsResponse struct {
	apiState
	SavingsApplied bool `json:"savings_applied"`
}

func newAPIState(s core.Session) apiState {
	if s.History == nil {
		s.History = core.History{}
	}
	return apiState{Session: s, ResultShown: s.Result.Shown()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) apiStoreFailure(w http.ResponseWriter, r *http.Request, id, op string, err error) {
	s.logStoreFailure(r, id, op, err)
	writeJSON(w, http.StatusInternalServerError, apiError{Error: msgStoreFailure})
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	sess, err := s.calc.Session(r.Context(), id)
	if err != nil {
		s.apiStoreFailure(w, r, id, applog.OpLoad, err)
		return
	}
	writeJSON(w, http.StatusOK, newAPIState(sess))
}

// handleAPICalculate answers 200 with the new state, or 422 with the state
// and the reason when the inputs were rejected.
func (s *Server) handleAPICalculate(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}

	id := s.sessionID(w, r)
	sess, err := s.calc.CalculateExpenses(r.Context(), id, ParseCalculationInputs(parser))
	switch {
	case err == nil:
		s.recorded(r, id, sess)
		writeJSON(w, http.StatusOK, newAPIState(sess))
	case services.IsRejection(err):
		s.appMetrics.rejected.Add(1)
		state := newAPIState(sess)
		resp := apiError{Error: err.Error(), State: &state}
		var fieldErr *core.FieldValidationError
		if errors.As(err, &fieldErr) {
			resp.InvalidFields = fieldErr.Fields
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		s.apiStoreFailure(w, r, id, applog.OpSave, err)
	}
}

// handleAPISavings always answers 200 for a usable store; savings_applied
// tells whether the percentage was accepted.
func (s *Server) handleAPISavings(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}

	id := s.sessionID(w, r)
	sess, err := s.calc.CalculateSavings(r.Context(), id, parser.Get("savings"))
	if err != nil && !services.IsRejection(err) {
		s.apiStoreFailure(w, r, id, applog.OpSave, err)
		return
	}
	if err == nil {
		s.appMetrics.savingsApplied.Add(1)
	}
	writeJSON(w, http.StatusOK, savingsResponse{apiState: newAPIState(sess), SavingsApplied: err == nil})
}
