// Package common contains shared constants and sentinel errors used across
// PinVault components.
package common

// SessionTokenHeaderName is the gRPC metadata key used to carry the bearer
// session token on outbound requests.
const SessionTokenHeaderName = "session-token"

// GeoLocationHeaderName is an optional metadata key a fronting proxy may set
// with a coarse "City/Country" location of the caller.
const GeoLocationHeaderName = "x-geo-location"

// ForwardedForHeaderName carries the original client address when the server
// sits behind a proxy.
const ForwardedForHeaderName = "x-forwarded-for"

// DefaultPINLength is the fixed number of digits in a vault PIN.
const DefaultPINLength = 6
