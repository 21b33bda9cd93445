// Package auth issues and verifies the short-lived signed grants that let a
// user who proved possession of a recovery key set a new PIN.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposePINReset = "pin-reset"
	issuer          = "pinvault"
)

// Claims carries the standard claims plus the grant purpose and a tag of the
// credential state the grant was issued against. Once the PIN changes the tag
// no longer matches, so a grant cannot be replayed.
type Claims struct {
	jwt.RegisteredClaims
	Purpose       string `json:"purpose"`
	CredentialTag string `json:"ctag"`
}

type GrantIssuer struct {
	secretKey []byte
	validity  time.Duration
	now       func() time.Time
}

func NewGrantIssuer(secretKey []byte, validity time.Duration, now func() time.Time) *GrantIssuer {
	return &GrantIssuer{secretKey: secretKey, validity: validity, now: now}
}

// Issue signs a pin-reset grant for userID.
func (g *GrantIssuer) Issue(userID, credentialTag string) (string, time.Time, error) {
	now := g.now()
	expires := now.Add(g.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Purpose:       PurposePINReset,
		CredentialTag: credentialTag,
	})

	tokenString, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expires, nil
}

// Parse verifies signature, expiry and purpose.
func (g *GrantIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return g.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != PurposePINReset || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
