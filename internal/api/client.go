package api

import (
	"context"

	"google.golang.org/grpc"
)

// PinVaultClient is the client stub of the PinVault service. Every call
// is sent with the JSON content subtype.
type PinVaultClient struct {
	cc grpc.ClientConnInterface
}

func NewPinVaultClient(cc grpc.ClientConnInterface) *PinVaultClient {
	return &PinVaultClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *PinVaultClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PinVaultClient) Ping(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c, "Ping", in, opts)
}

func (c *PinVaultClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error) {
	return invoke[CreateAccountResponse](ctx, c, "CreateAccount", in, opts)
}

func (c *PinVaultClient) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c, "Verify", in, opts)
}

func (c *PinVaultClient) ChangePIN(ctx context.Context, in *ChangePINRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "ChangePIN", in, opts)
}

func (c *PinVaultClient) SetDecoy(ctx context.Context, in *SetDecoyRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "SetDecoy", in, opts)
}

func (c *PinVaultClient) ClearDecoy(ctx context.Context, in *ClearDecoyRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "ClearDecoy", in, opts)
}

func (c *PinVaultClient) GenerateRecoveryKey(ctx context.Context, in *GenerateRecoveryKeyRequest, opts ...grpc.CallOption) (*RecoveryKeyResponse, error) {
	return invoke[RecoveryKeyResponse](ctx, c, "GenerateRecoveryKey", in, opts)
}

func (c *PinVaultClient) GetRecoveryKey(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*RecoveryKeyResponse, error) {
	return invoke[RecoveryKeyResponse](ctx, c, "GetRecoveryKey", in, opts)
}

func (c *PinVaultClient) Recover(ctx context.Context, in *RecoverRequest, opts ...grpc.CallOption) (*RecoverResponse, error) {
	return invoke[RecoverResponse](ctx, c, "Recover", in, opts)
}

func (c *PinVaultClient) ResetPIN(ctx context.Context, in *ResetPINRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "ResetPIN", in, opts)
}

func (c *PinVaultClient) ListSessions(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c, "ListSessions", in, opts)
}

func (c *PinVaultClient) TerminateSession(ctx context.Context, in *TerminateSessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "TerminateSession", in, opts)
}

func (c *PinVaultClient) TerminateOthers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*TerminateOthersResponse, error) {
	return invoke[TerminateOthersResponse](ctx, c, "TerminateOthers", in, opts)
}

func (c *PinVaultClient) Logout(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Logout", in, opts)
}

func (c *PinVaultClient) ListSecurityEvents(ctx context.Context, in *ListSecurityEventsRequest, opts ...grpc.CallOption) (*ListSecurityEventsResponse, error) {
	return invoke[ListSecurityEventsResponse](ctx, c, "ListSecurityEvents", in, opts)
}
