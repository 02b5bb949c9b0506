package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/leozw/stream-meter/internal/config"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteWriter_Flush(t *testing.T) {
	var received prompb.WriteRequest
	var tenant string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/push", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		tenant = r.Header.Get("X-Scope-OrgID")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		data, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, received.Unmarshal(data))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewCollector(prometheus.NewRegistry())
	c.SetMonitorsRunning(3)
	stream := &db.Stream{ID: 7, Name: "Show"}
	c.RecordCollection(stream, 200*time.Millisecond, nil)

	w := NewRemoteWriter(config.MimirConfig{
		URL:          srv.URL,
		TenantHeader: "X-Scope-OrgID",
		TenantID:     "stream-meter",
		BatchSize:    1000,
	}, c.Gatherer(), zap.NewNop())

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, "stream-meter", tenant)

	names := map[string]float64{}
	for _, ts := range received.Timeseries {
		for _, l := range ts.Labels {
			if l.Name == "__name__" {
				names[l.Value] = ts.Samples[0].Value
			}
		}
	}
	assert.Equal(t, float64(3), names["streammeter_monitors_running"])
	assert.Equal(t, float64(1), names["streammeter_collection_duration_seconds_count"])
	assert.Contains(t, names, "streammeter_collection_duration_seconds_bucket")
}

func TestRemoteWriter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCollector(prometheus.NewRegistry())
	c.SetMonitorsRunning(1)

	w := NewRemoteWriter(config.MimirConfig{URL: srv.URL}, c.Gatherer(), zap.NewNop())
	assert.Error(t, w.Flush(context.Background()))
}

func TestToTimeSeries_SortedLabelsAndInfBucket(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordCollection(&db.Stream{ID: 7, Name: "Show"}, 2*time.Second, nil)

	families, err := c.Gatherer().Gather()
	require.NoError(t, err)

	var infSeen bool
	for _, ts := range toTimeSeries(families, 1000) {
		for i := 1; i < len(ts.Labels); i++ {
			assert.Less(t, ts.Labels[i-1].Name, ts.Labels[i].Name)
		}
		for _, l := range ts.Labels {
			if l.Name == "le" && l.Value == "+Inf" {
				infSeen = true
				assert.Equal(t, float64(1), ts.Samples[0].Value)
			}
		}
		assert.Equal(t, int64(1000), ts.Samples[0].Timestamp)
	}
	assert.True(t, infSeen)
}
