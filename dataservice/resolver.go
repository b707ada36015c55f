// Package dataservice resolves a sealed Agreement and a requested wire
// Format onto the concrete endpoint a consumer's data plane should reach,
// the boundary C5 sits on between the protocol core and the actual storage
// backing an offer (spec.md §4.4's "DataServiceResolver" dependency).
package dataservice

import (
	"context"
	"fmt"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

// Endpoint is what a resolver hands back: enough for the data plane façade
// to construct a model.DataAddress for the peer.
type Endpoint struct {
	Address      string
	EndpointType string
	AccessToken  string
}

// Resolver maps (agreementId, format) to the Endpoint backing it. Real
// deployments implement this against whatever storage/catalog systems sit
// behind the connector; this package only supplies the interface and a
// fixture double for tests.
type Resolver interface {
	Resolve(ctx context.Context, agreementId urn.AgreementId, format model.Format) (Endpoint, error)
}

// StaticResolver is a fixed-table Resolver, useful for tests and for
// deployments whose agreements map onto a small, operator-curated set of
// backing endpoints rather than a dynamic catalog.
type StaticResolver struct {
	byKey map[string]Endpoint
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{byKey: make(map[string]Endpoint)}
}

func (r *StaticResolver) Register(agreementId urn.AgreementId, format model.Format, ep Endpoint) {
	r.byKey[resolverKey(agreementId, format)] = ep
}

func (r *StaticResolver) Resolve(_ context.Context, agreementId urn.AgreementId, format model.Format) (Endpoint, error) {
	var ep, ok = r.byKey[resolverKey(agreementId, format)]
	if !ok {
		return Endpoint{}, dsperr.New(dsperr.KindNotFound, "no data service registered for agreement and format")
	}
	return ep, nil
}

func resolverKey(agreementId urn.AgreementId, format model.Format) string {
	return fmt.Sprintf("%s|%s|%s", agreementId.String(), format.Protocol, format.Action)
}
