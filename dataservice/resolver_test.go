package dataservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

func TestStaticResolverRoundTrip(t *testing.T) {
	var resolver = NewStaticResolver()
	var agreementId = urn.NewAgreementId()
	var format = model.Format{Protocol: "HTTP", Action: model.ActionPull}

	_, err := resolver.Resolve(context.Background(), agreementId, format)
	require.Error(t, err)

	resolver.Register(agreementId, format, Endpoint{Address: "https://data.example/x", EndpointType: "HttpData", AccessToken: "tok"})

	ep, err := resolver.Resolve(context.Background(), agreementId, format)
	require.NoError(t, err)
	require.Equal(t, "https://data.example/x", ep.Address)
}
