package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgeo/drivers/sv/sv"
)

// svCollector exports a decoder metrics snapshot to Prometheus
type svCollector struct {
	metrics *sv.Metrics

	payloads  *prometheus.Desc
	failures  *prometheus.Desc
	asdus     *prometheus.Desc
	bytes     *prometheus.Desc
	skipped   *prometheus.Desc
	datagrams *prometheus.Desc
	uptime    *prometheus.Desc
	latency   *prometheus.Desc
}

func newSVCollector(m *sv.Metrics) *svCollector {
	return &svCollector{
		metrics:   m,
		payloads:  prometheus.NewDesc("sv_payloads_decoded_total", "Sampled Values payloads decoded.", nil, nil),
		failures:  prometheus.NewDesc("sv_payloads_failed_total", "Sampled Values payloads rejected, by reason.", []string{"reason"}, nil),
		asdus:     prometheus.NewDesc("sv_asdus_decoded_total", "ASDUs decoded.", nil, nil),
		bytes:     prometheus.NewDesc("sv_bytes_decoded_total", "Payload bytes decoded.", nil, nil),
		skipped:   prometheus.NewDesc("sv_frames_skipped_total", "Frames that were not Sampled Values.", nil, nil),
		datagrams: prometheus.NewDesc("sv_datagrams_received_total", "UDP datagrams received.", nil, nil),
		uptime:    prometheus.NewDesc("sv_uptime_seconds", "Seconds since the metrics were started or reset.", nil, nil),
		latency:   prometheus.NewDesc("sv_decode_duration_seconds", "Payload decode latency.", nil, nil),
	}
}

func (c *svCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.payloads
	ch <- c.failures
	ch <- c.asdus
	ch <- c.bytes
	ch <- c.skipped
	ch <- c.datagrams
	ch <- c.uptime
	ch <- c.latency
}

func (c *svCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.payloads, prometheus.CounterValue, float64(snap.PayloadsDecoded))
	for reason, n := range snap.Failures {
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(n), reason.String())
	}
	ch <- prometheus.MustNewConstMetric(c.asdus, prometheus.CounterValue, float64(snap.ASDUsDecoded))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(snap.BytesDecoded))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(snap.FramesSkipped))
	ch <- prometheus.MustNewConstMetric(c.datagrams, prometheus.CounterValue, float64(snap.DatagramsReceived))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Uptime.Seconds())

	// Prometheus buckets are cumulative, ours are not
	buckets := make(map[float64]uint64, len(sv.LatencyBuckets))
	var cumulative uint64
	for i, bound := range sv.LatencyBuckets {
		cumulative += uint64(snap.LatencyStats.Buckets[i])
		buckets[bound.Seconds()] = cumulative
	}
	ch <- prometheus.MustNewConstHistogram(c.latency,
		uint64(snap.LatencyStats.Count),
		snap.LatencyStats.Sum.Seconds(),
		buckets,
	)
}

// serveMetrics exposes m on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, m *sv.Metrics) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(newSVCollector(m)); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
