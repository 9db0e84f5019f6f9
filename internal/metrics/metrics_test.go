package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveMutationIncrementsCounter(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	c.ObserveMutation("replace_section", "ok", 0.01)

	mf, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.Metric
	for _, f := range mf {
		if f.GetName() == "scribe_dle_mutations_total" {
			found = f.Metric[0]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, float64(1), found.GetCounter().GetValue())
}

func TestSetMirrorPending(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	c.SetMirrorPending(3)

	mf, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.Metric
	for _, f := range mf {
		if f.GetName() == "scribe_dle_mirror_pending" {
			found = f.Metric[0]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, float64(3), found.GetGauge().GetValue())
}
