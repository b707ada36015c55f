package validator

import (
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/urn"
)

// CheckCorrelation implements step 3: when the process is already on
// record, the providerPid/consumerPid carried on the inbound payload must
// agree with what is stored. A nil on either side (not yet known) is not a
// mismatch — cn/tp's own correlate() is what actually fills gaps in once
// this check passes.
func CheckCorrelation(storedProviderPid, storedConsumerPid, payloadProviderPid, payloadConsumerPid *urn.ProcessId) error {
	if storedProviderPid != nil && payloadProviderPid != nil && !storedProviderPid.Equal(payloadProviderPid.URN) {
		return dsperr.New(dsperr.KindConflict, "providerPid does not match the stored process")
	}
	if storedConsumerPid != nil && payloadConsumerPid != nil && !storedConsumerPid.Equal(payloadConsumerPid.URN) {
		return dsperr.New(dsperr.KindConflict, "consumerPid does not match the stored process")
	}
	return nil
}
