package peerauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/urn"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	var issuer = NewIssuer(testKey(), "dspconnect")
	var participantId = urn.NewParticipantId()

	token, err := issuer.Issue(participantId, nil, time.Hour)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, participantId.String(), claims.ParticipantId)
	require.Empty(t, claims.ProcessId)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	var issuer = NewIssuer(testKey(), "dspconnect")
	var participantId = urn.NewParticipantId()

	token, err := issuer.Issue(participantId, nil, -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
}

func TestAuthorizeForProcessScoping(t *testing.T) {
	var issuer = NewIssuer(testKey(), "dspconnect")
	var participantId = urn.NewParticipantId()
	var processId = urn.NewProcessId()
	var otherProcessId = urn.NewProcessId()

	token, err := issuer.Issue(participantId, &processId, time.Hour)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)

	require.NoError(t, claims.AuthorizeForProcess(participantId, processId))
	require.Error(t, claims.AuthorizeForProcess(participantId, otherProcessId))

	var otherParticipant = urn.NewParticipantId()
	require.Error(t, claims.AuthorizeForProcess(otherParticipant, processId))
}

func TestUnscopedTokenAuthorizesAnyProcess(t *testing.T) {
	var issuer = NewIssuer(testKey(), "dspconnect")
	var participantId = urn.NewParticipantId()

	token, err := issuer.Issue(participantId, nil, time.Hour)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)

	require.NoError(t, claims.AuthorizeForProcess(participantId, urn.NewProcessId()))
}
