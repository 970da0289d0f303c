package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAPICall(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("begin", "error"))
	ObserveAPICall("begin", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("begin", "error")))

	before = testutil.ToFloat64(APIRequestsTotal.WithLabelValues("status", "success"))
	ObserveAPICall("status", time.Now(), nil)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("status", "success")))
}

func TestObservePrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("video", "failed"))
	ObservePrediction("video", "failed", time.Now().Add(-time.Second))
	assert.Equal(t, before+1, testutil.ToFloat64(PredictionsTotal.WithLabelValues("video", "failed")))
}
