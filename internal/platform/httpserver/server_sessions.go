package httpserver

import (
	"errors"
	"net/http"

	sessionerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	sessionhttp "voteverse/contexts/identity-access/session-authority/transport/http"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sessions.Handler.OpenSessionHandler(r.Context())
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	w.Header().Set(sessionHeader, resp.SessionID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sessions.Handler.CurrentSessionHandler(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTerminateSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sessions.Handler.TerminateHandler(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.RequestVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeSessionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.sessions.Handler.RequestVerificationHandler(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.ConfirmVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeSessionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.sessions.Handler.ConfirmVerificationHandler(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuthenticateAdmin(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.AuthenticateAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeSessionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.sessions.Handler.AuthenticateAdminHandler(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetDistrict(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.SetDistrictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeSessionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.sessions.Handler.SetDistrictHandler(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		writeSessionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSessionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionerrors.ErrVoterNotRegistered):
		writeSessionError(w, http.StatusNotFound, "voter_not_registered", err.Error())
	case errors.Is(err, sessionerrors.ErrSessionNotFound):
		writeSessionError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, sessionerrors.ErrUnknownDistrict):
		writeSessionError(w, http.StatusNotFound, "unknown_district", err.Error())
	case errors.Is(err, sessionerrors.ErrInvalidCode):
		writeSessionError(w, http.StatusUnauthorized, "invalid_code", err.Error())
	case errors.Is(err, sessionerrors.ErrVerificationExpired):
		writeSessionError(w, http.StatusUnauthorized, "verification_expired", err.Error())
	case errors.Is(err, sessionerrors.ErrInvalidAdminCredentials):
		writeSessionError(w, http.StatusUnauthorized, "invalid_admin_credentials", err.Error())
	case errors.Is(err, sessionerrors.ErrNotAuthenticated):
		writeSessionError(w, http.StatusUnauthorized, "not_authenticated", err.Error())
	case errors.Is(err, sessionerrors.ErrNotAuthorized):
		writeSessionError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, sessionerrors.ErrNoPendingVerification):
		writeSessionError(w, http.StatusConflict, "no_pending_verification", err.Error())
	case errors.Is(err, sessionerrors.ErrDistrictLocked):
		writeSessionError(w, http.StatusConflict, "district_locked", err.Error())
	case errors.Is(err, sessionerrors.ErrInvalidSessionInput):
		writeSessionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeSessionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSessionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, sessionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
