package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestTimerObservesHistogram(t *testing.T) {
	before := testutil.CollectAndCount(BackupDuration)
	NewTimer().ObserveDuration(BackupDuration)
	assert.Equal(t, before, testutil.CollectAndCount(BackupDuration))

	PropertiesSaves.WithLabelValues(Result(nil)).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(PropertiesSaves.WithLabelValues("success")), 1.0)
}
