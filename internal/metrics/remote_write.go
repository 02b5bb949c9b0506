package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/golang/snappy"
	"github.com/leozw/stream-meter/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
)

// RemoteWriter pushes snapshots of a gatherer to a Prometheus remote-write
// endpoint such as Mimir.
type RemoteWriter struct {
	config   config.MimirConfig
	gatherer prometheus.Gatherer
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

func NewRemoteWriter(cfg config.MimirConfig, gatherer prometheus.Gatherer, logger *zap.Logger) *RemoteWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	return &RemoteWriter{
		config:   cfg,
		gatherer: gatherer,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

// Start flushes every FlushInterval, and once more when ctx is done so the
// last measurements of a shutdown are not lost.
func (w *RemoteWriter) Start(ctx context.Context) {
	w.logger.Info("Remote write enabled",
		zap.String("url", w.config.URL),
		zap.Duration("interval", w.config.FlushInterval),
	)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := w.Flush(final); err != nil {
				w.logger.Warn("Final remote write failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

func (w *RemoteWriter) Flush(ctx context.Context) error {
	families, err := w.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	series := toTimeSeries(families, w.now().UnixMilli())
	for start := 0; start < len(series); start += w.config.BatchSize {
		end := min(start+w.config.BatchSize, len(series))
		if err := w.push(ctx, series[start:end]); err != nil {
			return err
		}
	}

	w.logger.Debug("Remote write flushed", zap.Int("series", len(series)))
	return nil
}

// toTimeSeries flattens gathered families into one sample per series.
// Histograms expand into _bucket, _count and _sum series. Summaries and
// untyped values are skipped.
func toTimeSeries(families []*dto.MetricFamily, ts int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	emit := func(name string, base []*dto.LabelPair, value float64, extra ...prompb.Label) {
		labels := make([]prompb.Label, 0, len(base)+len(extra)+1)
		labels = append(labels, prompb.Label{Name: "__name__", Value: name})
		for _, l := range base {
			labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
		}
		labels = append(labels, extra...)
		sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

		out = append(out, prompb.TimeSeries{
			Labels:  labels,
			Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
		})
	}

	for _, mf := range families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				emit(name, m.GetLabel(), m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				emit(name, m.GetLabel(), m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				for _, b := range h.GetBucket() {
					le := strconv.FormatFloat(b.GetUpperBound(), 'g', -1, 64)
					emit(name+"_bucket", m.GetLabel(), float64(b.GetCumulativeCount()), prompb.Label{Name: "le", Value: le})
				}
				emit(name+"_bucket", m.GetLabel(), float64(h.GetSampleCount()), prompb.Label{Name: "le", Value: "+Inf"})
				emit(name+"_count", m.GetLabel(), float64(h.GetSampleCount()))
				emit(name+"_sum", m.GetLabel(), h.GetSampleSum())
			}
		}
	}
	return out
}

func (w *RemoteWriter) push(ctx context.Context, series []prompb.TimeSeries) error {
	payload, err := (&prompb.WriteRequest{Timeseries: series}).Marshal()
	if err != nil {
		return fmt.Errorf("marshal write request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL+"/api/v1/push", bytes.NewReader(snappy.Encode(nil, payload)))
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if w.config.TenantHeader != "" && w.config.TenantID != "" {
		req.Header.Set(w.config.TenantHeader, w.config.TenantID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("push %d series: %w", len(series), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote write returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
