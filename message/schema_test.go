package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaRegistryRejectsMissingRequiredField(t *testing.T) {
	reg, err := NewSchemaRegistry()
	require.NoError(t, err)

	err = reg.Validate(KindTransferRequest, []byte(`{"@type":"dspace:TransferRequestMessage"}`))
	require.Error(t, err)
}

func TestSchemaRegistryAcceptsValidBody(t *testing.T) {
	reg, err := NewSchemaRegistry()
	require.NoError(t, err)

	var body = []byte(`{
		"@type": "dspace:TransferRequestMessage",
		"consumerPid": "urn:process:11111111-1111-1111-1111-111111111111",
		"agreementId": "urn:agreement:22222222-2222-2222-2222-222222222222",
		"format": {"protocol": "HTTP", "action": "Pull"}
	}`)
	require.NoError(t, reg.Validate(KindTransferRequest, body))
}

func TestSchemaRegistryRejectsBadFormatAction(t *testing.T) {
	reg, err := NewSchemaRegistry()
	require.NoError(t, err)

	var body = []byte(`{
		"@type": "dspace:TransferRequestMessage",
		"consumerPid": "urn:process:11111111-1111-1111-1111-111111111111",
		"agreementId": "urn:agreement:22222222-2222-2222-2222-222222222222",
		"format": {"protocol": "HTTP", "action": "Sideways"}
	}`)
	require.Error(t, reg.Validate(KindTransferRequest, body))
}
