package httpserver

import (
	"errors"
	"net/http"

	electionerrors "voteverse/contexts/election/voting-coordinator/domain/errors"
	electionhttp "voteverse/contexts/election/voting-coordinator/transport/http"
)

func (s *Server) handleListDistricts(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.DistrictsHandler(r.Context())
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.CandidatesOfHandler(r.Context(), r.Header.Get(sessionHeader), r.PathValue("district"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVoters(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.VotersOfHandler(r.Context(), r.Header.Get(sessionHeader), r.PathValue("district"))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req electionhttp.CastVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.election.Handler.CastVoteHandler(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleMarkWinner(w http.ResponseWriter, r *http.Request) {
	var req electionhttp.MarkWinnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.election.Handler.MarkWinnerHandler(r.Context(), r.Header.Get(sessionHeader), r.PathValue("district"), req)
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublishResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.PublishResultsHandler(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.election.Handler.ResultsHandler(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		writeElectionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeElectionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, electionerrors.ErrCandidateNotFound):
		writeElectionError(w, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, electionerrors.ErrVoterNotFound):
		writeElectionError(w, http.StatusNotFound, "voter_not_found", err.Error())
	case errors.Is(err, electionerrors.ErrUnknownDistrict):
		writeElectionError(w, http.StatusNotFound, "unknown_district", err.Error())
	case errors.Is(err, electionerrors.ErrNotAuthenticated):
		writeElectionError(w, http.StatusUnauthorized, "not_authenticated", err.Error())
	case errors.Is(err, electionerrors.ErrNotAuthorized):
		writeElectionError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, electionerrors.ErrAlreadyVoted):
		writeElectionError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, electionerrors.ErrElectionClosed):
		writeElectionError(w, http.StatusConflict, "election_closed", err.Error())
	case errors.Is(err, electionerrors.ErrDistrictLocked):
		writeElectionError(w, http.StatusConflict, "district_locked", err.Error())
	case errors.Is(err, electionerrors.ErrConflict):
		writeElectionError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, electionerrors.ErrInvalidVoteInput):
		writeElectionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeElectionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeElectionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, electionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
