package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/peerauth"
	"github.com/dspconnect/core/urn"
	"github.com/dspconnect/core/validator"
)

func TestSchemaValidatorRejectsMissingRequiredField(t *testing.T) {
	v, err := validator.NewSchemaValidator()
	require.NoError(t, err)

	err = v.Validate(message.KindContractRequest, []byte(`{"offer": {}}`))
	require.Error(t, err)
	var kind, _ = dsperr.KindOf(err)
	require.Equal(t, dsperr.KindMalformedMessage, kind)
}

func TestSchemaValidatorAcceptsWellFormedPayload(t *testing.T) {
	v, err := validator.NewSchemaValidator()
	require.NoError(t, err)

	err = v.Validate(message.KindContractRequest, []byte(`{"consumerPid": "urn:process:x", "offer": {}}`))
	require.NoError(t, err)
}

func TestCheckCorrelationDetectsMismatch(t *testing.T) {
	var stored = urn.NewProcessId()
	var mismatched = urn.NewProcessId()

	err := validator.CheckCorrelation(&stored, nil, &mismatched, nil)
	require.Error(t, err)
	var kind, _ = dsperr.KindOf(err)
	require.Equal(t, dsperr.KindConflict, kind)
}

func TestCheckCorrelationAllowsUnknownFields(t *testing.T) {
	var stored = urn.NewProcessId()
	require.NoError(t, validator.CheckCorrelation(&stored, nil, nil, nil))
}

func TestCheckTpRoleForMessageRestrictsTransferRequest(t *testing.T) {
	err := validator.CheckTpRoleForMessage(message.KindTransferRequest, model.RoleConsumer, model.DirectionInbound)
	require.Error(t, err)

	require.NoError(t, validator.CheckTpRoleForMessage(message.KindTransferRequest, model.RoleProvider, model.DirectionInbound))
	require.NoError(t, validator.CheckTpRoleForMessage(message.KindTransferStart, model.RoleConsumer, model.DirectionInbound))
}

func TestPeerAuthCheckerRejectsForeignParticipant(t *testing.T) {
	var issuer = peerauth.NewIssuer([]byte("01234567890123456789012345678901"), "dspconnect")
	var checker = validator.NewPeerAuthChecker(issuer)

	var participant = urn.NewParticipantId()
	var other = urn.NewParticipantId()
	var processId = urn.NewProcessId()

	token, err := issuer.Issue(participant, &processId, time.Hour)
	require.NoError(t, err)

	require.NoError(t, checker.Check(token, participant, processId))

	err = checker.Check(token, other, processId)
	require.Error(t, err)
}
