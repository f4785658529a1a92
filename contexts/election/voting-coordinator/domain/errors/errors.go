package errors

import "errors"

var (
	ErrInvalidVoteInput  = errors.New("invalid vote input")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrAlreadyVoted      = errors.New("voter has already voted")
	ErrCandidateNotFound = errors.New("candidate not found in voter district")
	ErrElectionClosed    = errors.New("election results are published")
	ErrVoterNotFound     = errors.New("voter not found")
	ErrUnknownDistrict   = errors.New("unknown district")
	ErrDistrictLocked    = errors.New("district is locked after voting")
	ErrConflict          = errors.New("election store conflict")
)
