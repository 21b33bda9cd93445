package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/pinvault/internal/api"
	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handler struct {
	orch   *services.Orchestrator
	logger logging.Logger
}

var _ api.PinVaultServer = (*handler)(nil)

// toStatus maps orchestrator outcomes to gRPC codes. Wrong PINs, missing
// sessions and decoy sessions on real-only operations share one code and
// message.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidCredential):
		return status.Error(codes.Unauthenticated, api.StatusInvalidCredential)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, api.StatusUnauthenticated)
	case errors.Is(err, common.ErrorThrottled):
		return status.Error(codes.ResourceExhausted, "too many attempts, try again later")
	case errors.Is(err, common.ErrorInvalidShape):
		return status.Error(codes.InvalidArgument, common.ErrorInvalidShape.Error())
	case errors.Is(err, common.ErrorSameAsCurrent):
		return status.Error(codes.FailedPrecondition, common.ErrorSameAsCurrent.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	}
	return status.Error(codes.Internal, "internal error")
}

func (h *handler) Ping(ctx context.Context, req *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (h *handler) CreateAccount(ctx context.Context, req *api.CreateAccountRequest) (*api.CreateAccountResponse, error) {
	id, err := h.orch.CreateAccount(ctx, []byte(req.PIN), callerFrom(ctx).Meta)
	if err != nil {
		return nil, toStatus(err)
	}
	h.logger.Info(ctx, "account created", "user_id", id)
	return &api.CreateAccountResponse{UserID: id}, nil
}

func (h *handler) Verify(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	res, err := h.orch.Verify(ctx, req.UserID, []byte(req.PIN), callerFrom(ctx).Meta)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.VerifyResponse{Token: res.Token, SessionID: res.SessionID, IsDecoy: res.IsDecoy, ExpiresAt: res.ExpiresAt}, nil
}

func (h *handler) ChangePIN(ctx context.Context, req *api.ChangePINRequest) (*api.Empty, error) {
	if err := h.orch.ChangePrimary(ctx, callerFrom(ctx), []byte(req.CurrentPIN), []byte(req.NewPIN)); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) SetDecoy(ctx context.Context, req *api.SetDecoyRequest) (*api.Empty, error) {
	if err := h.orch.SetDecoy(ctx, callerFrom(ctx), []byte(req.CurrentPIN), []byte(req.DecoyPIN)); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) ClearDecoy(ctx context.Context, req *api.ClearDecoyRequest) (*api.Empty, error) {
	if err := h.orch.ClearDecoy(ctx, callerFrom(ctx), []byte(req.CurrentPIN)); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) GenerateRecoveryKey(ctx context.Context, req *api.GenerateRecoveryKeyRequest) (*api.RecoveryKeyResponse, error) {
	key, err := h.orch.GenerateRecoveryKey(ctx, callerFrom(ctx), []byte(req.CurrentPIN))
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.RecoveryKeyResponse{Key: key}, nil
}

func (h *handler) GetRecoveryKey(ctx context.Context, req *api.Empty) (*api.RecoveryKeyResponse, error) {
	key, err := h.orch.GetRecoveryKey(ctx, callerFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.RecoveryKeyResponse{Key: key}, nil
}

func (h *handler) Recover(ctx context.Context, req *api.RecoverRequest) (*api.RecoverResponse, error) {
	grant, err := h.orch.Recover(ctx, req.UserID, req.RecoveryKey, callerFrom(ctx).Meta)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.RecoverResponse{Grant: grant.Token, ExpiresAt: grant.ExpiresAt}, nil
}

func (h *handler) ResetPIN(ctx context.Context, req *api.ResetPINRequest) (*api.Empty, error) {
	if err := h.orch.ResetPrimary(ctx, req.Grant, []byte(req.NewPIN), callerFrom(ctx).Meta); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) ListSessions(ctx context.Context, req *api.Empty) (*api.ListSessionsResponse, error) {
	views, err := h.orch.ListSessions(ctx, callerFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]api.Session, 0, len(views))
	for _, v := range views {
		out = append(out, api.Session{
			ID:           v.ID,
			IsDecoy:      v.IsDecoy,
			Current:      v.Current,
			Active:       v.Valid,
			CreatedAt:    v.CreatedAt,
			LastActivity: v.LastActivity,
			ExpiresAt:    v.ExpiresAt,
			LogoutAt:     v.LogoutAt,
			IPAddress:    v.IPAddress,
			UserAgent:    v.UserAgent,
			DeviceType:   v.DeviceType,
			Browser:      v.Browser,
			OS:           v.OS,
			Location:     v.Location,
		})
	}
	return &api.ListSessionsResponse{Sessions: out}, nil
}

func (h *handler) TerminateSession(ctx context.Context, req *api.TerminateSessionRequest) (*api.Empty, error) {
	if err := h.orch.TerminateSession(ctx, callerFrom(ctx), req.SessionID); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) TerminateOthers(ctx context.Context, req *api.Empty) (*api.TerminateOthersResponse, error) {
	n, err := h.orch.TerminateOthers(ctx, callerFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.TerminateOthersResponse{Count: n}, nil
}

func (h *handler) Logout(ctx context.Context, req *api.Empty) (*api.Empty, error) {
	if err := h.orch.Logout(ctx, callerFrom(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (h *handler) ListSecurityEvents(ctx context.Context, req *api.ListSecurityEventsRequest) (*api.ListSecurityEventsResponse, error) {
	events, err := h.orch.ListSecurityEvents(ctx, callerFrom(ctx), models.SecurityEventFilter{
		Categories: req.Categories,
		Since:      req.Since,
		Until:      req.Until,
		Before:     req.Before,
		BeforeID:   req.BeforeID,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	out := make([]api.SecurityEvent, 0, len(events))
	for _, e := range events {
		out = append(out, api.SecurityEvent{
			ID:        e.ID,
			EventType: string(e.EventType),
			Category:  e.Category,
			Details:   e.Details,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
		})
	}
	return &api.ListSecurityEventsResponse{Events: out}, nil
}
