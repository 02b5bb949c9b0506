package metrics

import (
	"strconv"
	"time"

	"github.com/leozw/stream-meter/internal/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes recorded by the monitors.
const (
	OutcomeCollected    = "collected"
	OutcomeOutsideDates = "outside_dates"
	OutcomeWeekday      = "weekday_excluded"
	OutcomeNoWindow     = "no_window"
	OutcomeOutsideHours = "outside_hours"
	OutcomeInactive     = "inactive"
	OutcomeError        = "error"
	OutcomeStopped      = "stopped"
)

type Collector struct {
	registry *prometheus.Registry

	// Scheduler
	monitorsRunning prometheus.Gauge
	monitorsStarted prometheus.Counter
	supervisorTicks *prometheus.CounterVec
	streamsScanned  prometheus.Gauge
	monitorCycles   *prometheus.CounterVec

	// Collection
	collectionDuration *prometheus.HistogramVec
	collectionsTotal   *prometheus.CounterVec

	// Latest counters per stream
	videoViews         *prometheus.GaugeVec
	videoLikes         *prometheus.GaugeVec
	videoComments      *prometheus.GaugeVec
	concurrentViewers  *prometheus.GaugeVec
	channelSubscribers *prometheus.GaugeVec
	lastMeasurement    *prometheus.GaugeVec
}

// NewCollector registers every metric on reg, which is also what Gatherer
// and the remote writer read from.
func NewCollector(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	streamLabels := []string{"stream_id", "stream_name"}

	return &Collector{
		registry: reg,

		monitorsRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "streammeter_monitors_running",
			Help: "Number of stream monitors currently running",
		}),
		monitorsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "streammeter_monitors_started_total",
			Help: "Total number of stream monitors started by the supervisor",
		}),
		supervisorTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammeter_supervisor_ticks_total",
			Help: "Supervisor scans by result",
		}, []string{"result"}),
		streamsScanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "streammeter_streams_scanned",
			Help: "Number of streams seen by the last supervisor scan",
		}),
		monitorCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammeter_monitor_cycles_total",
			Help: "Monitor cycles by outcome",
		}, []string{"outcome"}),

		collectionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streammeter_collection_duration_seconds",
			Help:    "Duration of one provider collection in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"status"}),
		collectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammeter_collections_total",
			Help: "Total number of collections by stream and status",
		}, append(streamLabels, "status")),

		videoViews: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_video_views",
			Help: "Latest view count of the stream's video",
		}, streamLabels),
		videoLikes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_video_likes",
			Help: "Latest like count of the stream's video",
		}, streamLabels),
		videoComments: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_video_comments",
			Help: "Latest comment count of the stream's video",
		}, streamLabels),
		concurrentViewers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_concurrent_viewers",
			Help: "Latest concurrent viewers; absent when the provider did not report it",
		}, streamLabels),
		channelSubscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_channel_subscribers",
			Help: "Latest subscriber count of the stream's channel",
		}, streamLabels),
		lastMeasurement: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streammeter_last_measurement_timestamp_seconds",
			Help: "Unix time of the last persisted measurement",
		}, streamLabels),
	}
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

func (c *Collector) SetMonitorsRunning(n int) {
	c.monitorsRunning.Set(float64(n))
}

func (c *Collector) RecordMonitorStarted() {
	c.monitorsStarted.Inc()
}

func (c *Collector) RecordSupervisorTick(streams int, err error) {
	if err != nil {
		c.supervisorTicks.WithLabelValues("error").Inc()
		return
	}
	c.supervisorTicks.WithLabelValues("ok").Inc()
	c.streamsScanned.Set(float64(streams))
}

func (c *Collector) RecordCycle(outcome string) {
	c.monitorCycles.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCollection(stream *db.Stream, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.collectionDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.collectionsTotal.WithLabelValues(streamID(stream), stream.Name, status).Inc()
}

func (c *Collector) RecordMeasurement(stream *db.Stream, m *db.Measurement, at time.Time) {
	labels := []string{streamID(stream), stream.Name}

	c.videoViews.WithLabelValues(labels...).Set(float64(m.VideoViews))
	c.videoLikes.WithLabelValues(labels...).Set(float64(m.VideoLikes))
	c.videoComments.WithLabelValues(labels...).Set(float64(m.VideoComments))
	c.channelSubscribers.WithLabelValues(labels...).Set(float64(m.ChannelSubscribers))
	c.lastMeasurement.WithLabelValues(labels...).Set(float64(at.Unix()))

	if m.ConcurrentViewers != nil {
		c.concurrentViewers.WithLabelValues(labels...).Set(float64(*m.ConcurrentViewers))
	} else {
		c.concurrentViewers.DeleteLabelValues(labels...)
	}
}

func streamID(s *db.Stream) string {
	return strconv.FormatInt(s.ID, 10)
}
