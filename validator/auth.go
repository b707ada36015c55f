package validator

import (
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/peerauth"
	"github.com/dspconnect/core/urn"
)

// PeerAuthChecker implements step 4: the bearer token must verify and must be
// scoped to the process the message claims to belong to. Bound to a
// concrete *peerauth.Issuer rather than an interface since there is exactly
// one signing key per deployment.
type PeerAuthChecker struct {
	Issuer *peerauth.Issuer
}

func NewPeerAuthChecker(issuer *peerauth.Issuer) *PeerAuthChecker {
	return &PeerAuthChecker{Issuer: issuer}
}

func (c *PeerAuthChecker) Check(token string, participantId urn.ParticipantId, processId urn.ProcessId) error {
	claims, err := c.Issuer.Verify(token)
	if err != nil {
		return dsperr.Wrap(dsperr.KindUnauthorized, err, "bearer token did not verify")
	}
	return claims.AuthorizeForProcess(participantId, processId)
}
