package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "pinvault.v1.PinVault"

// PinVaultServer is implemented by the server. Operations other than
// Ping, CreateAccount, Verify, Recover and ResetPIN read the session
// token from the SessionTokenKey metadata entry.
type PinVaultServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	ChangePIN(context.Context, *ChangePINRequest) (*Empty, error)
	SetDecoy(context.Context, *SetDecoyRequest) (*Empty, error)
	ClearDecoy(context.Context, *ClearDecoyRequest) (*Empty, error)
	GenerateRecoveryKey(context.Context, *GenerateRecoveryKeyRequest) (*RecoveryKeyResponse, error)
	GetRecoveryKey(context.Context, *Empty) (*RecoveryKeyResponse, error)
	Recover(context.Context, *RecoverRequest) (*RecoverResponse, error)
	ResetPIN(context.Context, *ResetPINRequest) (*Empty, error)
	ListSessions(context.Context, *Empty) (*ListSessionsResponse, error)
	TerminateSession(context.Context, *TerminateSessionRequest) (*Empty, error)
	TerminateOthers(context.Context, *Empty) (*TerminateOthersResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	ListSecurityEvents(context.Context, *ListSecurityEventsRequest) (*ListSecurityEventsResponse, error)
}

// FullMethod returns the gRPC method path of a PinVault operation.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc is what protoc-gen-go-grpc would emit for the service,
// written out by hand because messages are plain Go structs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PinVaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", PinVaultServer.Ping),
		unary("CreateAccount", PinVaultServer.CreateAccount),
		unary("Verify", PinVaultServer.Verify),
		unary("ChangePIN", PinVaultServer.ChangePIN),
		unary("SetDecoy", PinVaultServer.SetDecoy),
		unary("ClearDecoy", PinVaultServer.ClearDecoy),
		unary("GenerateRecoveryKey", PinVaultServer.GenerateRecoveryKey),
		unary("GetRecoveryKey", PinVaultServer.GetRecoveryKey),
		unary("Recover", PinVaultServer.Recover),
		unary("ResetPIN", PinVaultServer.ResetPIN),
		unary("ListSessions", PinVaultServer.ListSessions),
		unary("TerminateSession", PinVaultServer.TerminateSession),
		unary("TerminateOthers", PinVaultServer.TerminateOthers),
		unary("Logout", PinVaultServer.Logout),
		unary("ListSecurityEvents", PinVaultServer.ListSecurityEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pinvault/v1/pinvault.json",
}

func RegisterPinVaultServer(s grpc.ServiceRegistrar, srv PinVaultServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(PinVaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PinVaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PinVaultServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
