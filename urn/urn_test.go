package urn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	var id = NewProcessId()
	parsed, err := ParseProcessId(id.String())
	require.NoError(t, err)
	require.True(t, id.Equal(parsed.URN))
}

func TestNamespacesNeverEqual(t *testing.T) {
	var a = New(NamespaceProcess)
	var b, err = Parse("urn:message:" + a.id.String())
	require.NoError(t, err)
	require.False(t, a.Equal(b))
}

func TestMalformed(t *testing.T) {
	for _, s := range []string{"", "not-a-urn", "urn:process", "urn:process:not-a-uuid"} {
		_, err := Parse(s)
		require.Error(t, err, s)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	var id = NewAgreementId()
	b, err := json.Marshal(id)
	require.NoError(t, err)

	var out AgreementId
	require.NoError(t, json.Unmarshal(b, &out))
	require.True(t, id.Equal(out.URN))
}

func TestZeroValueMarshalsEmpty(t *testing.T) {
	var id ProcessId
	b, err := json.Marshal(id)
	require.NoError(t, err)
	require.Equal(t, `""`, string(b))
}
