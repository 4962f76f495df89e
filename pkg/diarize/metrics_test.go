package diarize

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for k, v := range labels {
				found := false
				for _, pair := range m.GetLabel() {
					if pair.GetName() == k && pair.GetValue() == v {
						found = true
						break
					}
				}
				if !found {
					continue metric
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestMetrics_JobLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.JobStarted()
	metrics.JobStarted()
	assert.Equal(t, float64(2), gatherValue(t, reg, "mbud_diarize_active_jobs", nil))

	metrics.JobSucceeded(2 * time.Second)
	metrics.JobFailed("process_failure", time.Second)

	assert.Equal(t, float64(2), gatherValue(t, reg, "mbud_diarize_jobs_started_total", nil))
	assert.Equal(t, float64(1), gatherValue(t, reg, "mbud_diarize_jobs_succeeded_total", nil))
	assert.Equal(t, float64(1), gatherValue(t, reg, "mbud_diarize_jobs_failed_total", map[string]string{"code": "process_failure"}))
	assert.Equal(t, float64(0), gatherValue(t, reg, "mbud_diarize_active_jobs", nil))
}

func TestMetrics_FailureCodesAreSeparateSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.JobStarted()
	metrics.JobStarted()
	metrics.JobFailed("audio_not_found", time.Millisecond)
	metrics.JobFailed("payload_missing", time.Millisecond)

	assert.Equal(t, float64(1), gatherValue(t, reg, "mbud_diarize_jobs_failed_total", map[string]string{"code": "audio_not_found"}))
	assert.Equal(t, float64(1), gatherValue(t, reg, "mbud_diarize_jobs_failed_total", map[string]string{"code": "payload_missing"}))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var metrics *Metrics

	// A service wired without metrics must be able to call these blindly.
	metrics.JobStarted()
	metrics.JobSucceeded(time.Second)
	metrics.JobFailed("launch_failure", time.Second)
}
