package dataplane

import (
	"context"

	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/model"
)

// PullStrategy provisions a DataAddress by resolving the transfer's
// agreement against a dataservice.Resolver, mirroring how the
// dataplane-sdk-go example's startProcessor builds a DataAddress from a
// freshly issued token and channel pair before handing control back to the
// signalling layer.
type PullStrategy struct {
	Resolver dataservice.Resolver
}

func NewPullStrategy(resolver dataservice.Resolver) *PullStrategy {
	return &PullStrategy{Resolver: resolver}
}

func (p *PullStrategy) Provision(ctx context.Context, proc *model.TransferProcess) (*model.DataAddress, error) {
	var ep, err = p.Resolver.Resolve(ctx, proc.AgreementId, proc.Format)
	if err != nil {
		return nil, err
	}
	return &model.DataAddress{
		Endpoint:     ep.Address,
		EndpointType: ep.EndpointType,
		EndpointProperties: map[string]string{
			"authorization": ep.AccessToken,
		},
	}, nil
}

func (p *PullStrategy) Start(context.Context, *model.TransferProcess) error    { return nil }
func (p *PullStrategy) Suspend(context.Context, *model.TransferProcess) error  { return nil }
func (p *PullStrategy) Complete(context.Context, *model.TransferProcess) error { return nil }
func (p *PullStrategy) Terminate(context.Context, *model.TransferProcess) error {
	return nil
}
