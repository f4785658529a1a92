package errors

import "errors"

var (
	ErrInvalidSessionInput     = errors.New("invalid session input")
	ErrSessionNotFound         = errors.New("session not found")
	ErrVoterNotRegistered      = errors.New("voter is not registered")
	ErrNoPendingVerification   = errors.New("no pending verification")
	ErrInvalidCode             = errors.New("invalid verification code")
	ErrVerificationExpired     = errors.New("verification code expired")
	ErrInvalidAdminCredentials = errors.New("invalid admin credentials")
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrNotAuthorized           = errors.New("not authorized")
	ErrUnknownDistrict         = errors.New("unknown district")
	ErrDistrictLocked          = errors.New("district is locked after voting")
)
