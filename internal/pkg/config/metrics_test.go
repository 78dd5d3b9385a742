package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Constructed once for the whole package: promauto registers with the
// default registry and panics on duplicate metric names.
var testMetrics = NewConfigMetrics("configtest")

func TestConfigMetrics_ValidationErrorsPerField(t *testing.T) {
	testMetrics.RecordValidationError("cron_schedule")
	testMetrics.RecordValidationError("cron_schedule")
	testMetrics.RecordValidationError("timezone")

	if got := testutil.ToFloat64(testMetrics.ValidationErrorsTotal.WithLabelValues("cron_schedule")); got != 2 {
		t.Errorf("cron_schedule errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(testMetrics.ValidationErrorsTotal.WithLabelValues("timezone")); got != 1 {
		t.Errorf("timezone errors = %v, want 1", got)
	}
}

func TestConfigMetrics_FallbacksPerField(t *testing.T) {
	testMetrics.RecordFallback("health_port")
	testMetrics.RecordFallback("health_port")

	if got := testutil.ToFloat64(testMetrics.FallbacksTotal.WithLabelValues("health_port")); got != 2 {
		t.Errorf("health_port fallbacks = %v, want 2", got)
	}
}

func TestConfigMetrics_FallbackActiveGauge(t *testing.T) {
	testMetrics.SetFallbackActive(true)
	if got := testutil.ToFloat64(testMetrics.FallbackActive); got != 1 {
		t.Errorf("FallbackActive = %v, want 1", got)
	}

	testMetrics.SetFallbackActive(false)
	if got := testutil.ToFloat64(testMetrics.FallbackActive); got != 0 {
		t.Errorf("FallbackActive = %v, want 0", got)
	}
}

func TestConfigMetrics_LoadTimestampSet(t *testing.T) {
	testMetrics.RecordLoadTimestamp()
	if got := testutil.ToFloat64(testMetrics.LoadTimestamp); got <= 0 {
		t.Errorf("LoadTimestamp = %v, want a positive Unix time", got)
	}
}
