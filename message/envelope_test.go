package message

import (
	"encoding/json"
	"testing"

	"github.com/dspconnect/core/urn"
	"github.com/stretchr/testify/require"
)

func TestDecodeContractRequest(t *testing.T) {
	var consumerPid = urn.NewProcessId()
	var raw = []byte(`{
		"@context": "https://w3id.org/dspace/2024/1/context.json",
		"@type": "dspace:ContractRequestMessage",
		"consumerPid": "` + consumerPid.String() + `",
		"offer": {"target": "urn:process:` + urn.New(urn.NamespaceProcess).String() + `"}
	}`)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindContractRequest, msg.Kind())

	req, ok := msg.(*ContractRequest)
	require.True(t, ok)
	require.True(t, req.ConsumerPid.Equal(consumerPid.URN))
}

func TestDecodeUnrecognizedKind(t *testing.T) {
	_, err := Decode([]byte(`{"@type": "dspace:Nonsense"}`))
	require.Error(t, err)
}

func TestEncodeRoundTripIsByteStable(t *testing.T) {
	var req = &ContractRequest{ConsumerPid: urn.NewProcessId(), Offer: json.RawMessage(`{"a":1}`)}
	first, err := Encode(req)
	require.NoError(t, err)

	decoded, err := Decode(first)
	require.NoError(t, err)
	second, err := Encode(decoded)
	require.NoError(t, err)

	require.JSONEq(t, string(first), string(second))
}

func TestDeepEqualPayloadIgnoresKeyOrderAndWhitespace(t *testing.T) {
	var a = []byte(`{"x": 1, "y": 2}`)
	var b = []byte(`{"y":2,"x":1}`)
	var c = []byte(`{"x": 1, "y": 3}`)

	require.True(t, DeepEqualPayload(a, b))
	require.False(t, DeepEqualPayload(a, c))
}
