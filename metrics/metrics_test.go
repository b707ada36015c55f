package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/metrics"
)

func TestObserveCNTransitionIncrementsLabeledCounter(t *testing.T) {
	var reg = prometheus.NewRegistry()
	var m = metrics.New(reg)

	m.ObserveCNTransition("REQUESTED", "AGREED", "dspace:ContractAgreementMessage")
	m.ObserveCNTransition("REQUESTED", "AGREED", "dspace:ContractAgreementMessage")

	var out dto.Metric
	require.NoError(t, m.CNTransitions.WithLabelValues("REQUESTED", "AGREED", "dspace:ContractAgreementMessage").Write(&out))
	require.Equal(t, float64(2), out.Counter.GetValue())
}

func TestTwoInstancesDoNotCollideOnSeparateRegistries(t *testing.T) {
	var a = metrics.New(prometheus.NewRegistry())
	var b = metrics.New(prometheus.NewRegistry())

	a.ObserveRejection("dspace:ContractRequestMessage")

	var out dto.Metric
	require.NoError(t, b.ValidatorRejections.WithLabelValues("dspace:ContractRequestMessage").Write(&out))
	require.Equal(t, float64(0), out.Counter.GetValue())
}
