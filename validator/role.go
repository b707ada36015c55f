package validator

import (
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
)

// CheckTpRoleForMessage implements step 5's table for the Transfer Process
// family: every kind but TransferRequest may be received or sent by either
// role; TransferRequest is provider-receives-only (spec.md §4.5). The
// Contract Negotiation family has its own, simpler role rule already
// enforced inline by cn.checkRole, so it is not duplicated here.
func CheckTpRoleForMessage(kind message.Kind, myRole model.Role, direction model.Direction) error {
	if kind != message.KindTransferRequest {
		return nil
	}
	if direction == model.DirectionInbound && myRole != model.RoleProvider {
		return dsperr.New(dsperr.KindForbidden, "only a provider receives TransferRequest")
	}
	if direction == model.DirectionOutbound && myRole != model.RoleConsumer {
		return dsperr.New(dsperr.KindForbidden, "only a consumer sends TransferRequest")
	}
	return nil
}
