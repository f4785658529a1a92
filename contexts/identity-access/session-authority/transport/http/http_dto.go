package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RequestVerificationRequest struct {
	Phone string `json:"phone"`
}

type ConfirmVerificationRequest struct {
	Code string `json:"code"`
}

type AuthenticateAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SetDistrictRequest struct {
	District string `json:"district"`
}

type VoterResponse struct {
	ID       string `json:"id"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	District string `json:"district"`
	HasVoted bool   `json:"has_voted"`
}

type SessionResponse struct {
	SessionID string         `json:"session_id"`
	State     string         `json:"state"`
	Phone     string         `json:"phone,omitempty"`
	VoterID   string         `json:"voter_id,omitempty"`
	Admin     string         `json:"admin,omitempty"`
	Voter     *VoterResponse `json:"voter,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
