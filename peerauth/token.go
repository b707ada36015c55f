// Package peerauth issues and verifies the bearer tokens DSP peers present
// on every inbound protocol call, bound to the (participant, process) pair
// the token was minted for (spec.md §4.9, C4). The credential shape and
// config-loading pattern are adapted from the authorization-server config
// this core's teacher carries; the OIDC/social-login and cookie-session
// machinery built around that shape does not survive the adaptation — see
// DESIGN.md.
package peerauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/urn"
)

// Claims binds a bearer token to the participant that was issued it and,
// once a negotiation or transfer exists, the specific process it may act
// on. A token with an empty ProcessId authenticates the participant only
// (used for the initial ContractRequest/TransferRequest, before any
// process id is known to the peer presenting the token).
type Claims struct {
	jwt.RegisteredClaims
	ParticipantId string `json:"pid"`
	ProcessId     string `json:"proc,omitempty"`
}

// Issuer signs and verifies Claims with a single HMAC key. spec.md §6 names
// KEYS_PATH as the directory holding this key material; LoadSigningKey
// (keys.go) reads it.
type Issuer struct {
	key    []byte
	issuer string
}

func NewIssuer(key []byte, issuer string) *Issuer {
	return &Issuer{key: key, issuer: issuer}
}

// Issue mints a bearer token scoped to participantId and, if processId is
// non-zero, further scoped to that single process.
func (i *Issuer) Issue(participantId urn.ParticipantId, processId *urn.ProcessId, ttl time.Duration) (string, error) {
	var now = time.Now()
	var claims = Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   participantId.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ParticipantId: participantId.String(),
	}
	if processId != nil {
		claims.ProcessId = processId.String()
	}

	var token = jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("signing bearer token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and returns its Claims, failing closed on any
// expiration, signature, or malformed-claims error.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	}, jwt.WithIssuer(i.issuer))
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindUnauthorized, err, "verifying bearer token")
	}
	if !token.Valid {
		return nil, dsperr.New(dsperr.KindUnauthorized, "bearer token is not valid")
	}
	return &claims, nil
}

// AuthorizeForProcess checks that claims authenticate participantId and,
// if the claims are process-scoped, that they are scoped to processId —
// the check the validator pipeline's peer-auth step performs (spec.md
// §4.5, step 4).
func (c *Claims) AuthorizeForProcess(participantId urn.ParticipantId, processId urn.ProcessId) error {
	if c.ParticipantId != participantId.String() {
		return dsperr.New(dsperr.KindForbidden, "token does not authenticate this participant")
	}
	if c.ProcessId != "" && c.ProcessId != processId.String() {
		return dsperr.New(dsperr.KindForbidden, "token is scoped to a different process")
	}
	return nil
}
