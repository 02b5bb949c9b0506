package metrics

import (
	"testing"
	"time"

	"github.com/leozw/stream-meter/internal/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMeasurement(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	stream := &db.Stream{ID: 4, Name: "Show"}
	viewers := int64(55)

	c.RecordMeasurement(stream, &db.Measurement{VideoViews: 100, ConcurrentViewers: &viewers}, time.Unix(1700000000, 0))
	assert.Equal(t, float64(100), testutil.ToFloat64(c.videoViews.WithLabelValues("4", "Show")))
	assert.Equal(t, float64(55), testutil.ToFloat64(c.concurrentViewers.WithLabelValues("4", "Show")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.concurrentViewers))

	// No live data drops the series instead of reporting zero viewers.
	c.RecordMeasurement(stream, &db.Measurement{VideoViews: 120}, time.Unix(1700000060, 0))
	assert.Equal(t, 0, testutil.CollectAndCount(c.concurrentViewers))
}

func TestRecordCycle(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordCycle(OutcomeCollected)
	c.RecordCycle(OutcomeCollected)
	c.RecordCycle(OutcomeOutsideHours)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.monitorCycles.WithLabelValues(OutcomeCollected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.monitorCycles.WithLabelValues(OutcomeOutsideHours)))
}
