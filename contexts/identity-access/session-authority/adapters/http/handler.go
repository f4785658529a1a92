package httpadapter

import (
	"context"
	"log/slog"

	"voteverse/contexts/identity-access/session-authority/adapters/delivery"
	"voteverse/contexts/identity-access/session-authority/application/commands"
	"voteverse/contexts/identity-access/session-authority/application/queries"
	"voteverse/contexts/identity-access/session-authority/domain/entities"
	httptransport "voteverse/contexts/identity-access/session-authority/transport/http"
)

type Handler struct {
	Sessions commands.SessionUseCase
	Queries  queries.SessionQuery
	Logger   *slog.Logger
}

func (h Handler) OpenSessionHandler(ctx context.Context) (httptransport.SessionResponse, error) {
	result, err := h.Sessions.OpenSession(ctx)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(result.SessionID, result.Session, result.Voter), nil
}

func (h Handler) CurrentSessionHandler(ctx context.Context, sessionID string) (httptransport.SessionResponse, error) {
	view, err := h.Queries.CurrentSession(ctx, sessionID)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(view.SessionID, view.Session, view.Voter), nil
}

func (h Handler) RequestVerificationHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.RequestVerificationRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Sessions.RequestVerification(ctx, commands.RequestVerificationCommand{
		SessionID: sessionID,
		Phone:     req.Phone,
	}); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "code_sent"}, nil
}

func (h Handler) ConfirmVerificationHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.ConfirmVerificationRequest,
) (httptransport.VoterResponse, error) {
	voter, err := h.Sessions.ConfirmVerification(ctx, commands.ConfirmVerificationCommand{
		SessionID: sessionID,
		Code:      req.Code,
	})
	if err != nil {
		return httptransport.VoterResponse{}, err
	}
	return mapVoter(voter), nil
}

func (h Handler) AuthenticateAdminHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.AuthenticateAdminRequest,
) (httptransport.StatusResponse, error) {
	if err := h.Sessions.AuthenticateAdmin(ctx, commands.AuthenticateAdminCommand{
		SessionID: sessionID,
		Username:  req.Username,
		Password:  req.Password,
	}); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "admin_authenticated"}, nil
}

func (h Handler) SetDistrictHandler(
	ctx context.Context,
	sessionID string,
	req httptransport.SetDistrictRequest,
) (httptransport.VoterResponse, error) {
	voter, err := h.Sessions.SetDistrict(ctx, commands.SetDistrictCommand{
		SessionID: sessionID,
		District:  req.District,
	})
	if err != nil {
		return httptransport.VoterResponse{}, err
	}
	return mapVoter(voter), nil
}

func (h Handler) TerminateHandler(ctx context.Context, sessionID string) (httptransport.StatusResponse, error) {
	if err := h.Sessions.Terminate(ctx, sessionID); err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{Status: "terminated"}, nil
}

func mapSession(sessionID string, session entities.Session, voter *entities.Voter) httptransport.SessionResponse {
	resp := httptransport.SessionResponse{
		SessionID: sessionID,
		State:     string(session.Kind()),
	}
	switch current := session.(type) {
	case entities.Anonymous:
	case entities.PendingVerification:
		resp.Phone = delivery.MaskPhone(current.Phone)
	case entities.AuthenticatedVoter:
		resp.VoterID = current.VoterID
		if voter != nil {
			mapped := mapVoter(*voter)
			resp.Voter = &mapped
		}
	case entities.AuthenticatedAdmin:
		resp.Admin = current.Username
	}
	return resp
}

func mapVoter(voter entities.Voter) httptransport.VoterResponse {
	return httptransport.VoterResponse{
		ID:       voter.ID,
		Phone:    voter.Phone,
		Name:     voter.Name,
		District: voter.District,
		HasVoted: voter.HasVoted,
	}
}
