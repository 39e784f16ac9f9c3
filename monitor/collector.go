package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// collectTimeout bounds the store reads of one scrape.
const collectTimeout = 5 * time.Second

// Collector exports the dashboard statistics as Prometheus gauges. Values
// are read from the store on every scrape.
type Collector struct {
	api    *API
	logger *slog.Logger

	jobs       *prometheus.Desc
	servers    *prometheus.Desc
	recurring  *prometheus.Desc
	queueDepth *prometheus.Desc
	up         *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector over api.
func NewCollector(api *API, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		api:    api,
		logger: logger,
		jobs: prometheus.NewDesc("jobstore_jobs",
			"Stored jobs by current state.", []string{"state"}, nil),
		servers: prometheus.NewDesc("jobstore_servers",
			"Registered processing servers.", nil, nil),
		recurring: prometheus.NewDesc("jobstore_recurring_jobs",
			"Recurring job definitions.", nil, nil),
		queueDepth: prometheus.NewDesc("jobstore_queue_entries",
			"Queue entries by queue and status.", []string{"queue", "status"}, nil),
		up: prometheus.NewDesc("jobstore_store_up",
			"Whether the last scrape could read the store.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.servers
	ch <- c.recurring
	ch <- c.queueDepth
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.api.Statistics(ctx)
	if err != nil {
		c.logger.Warn("metrics scrape failed", slog.String("error", err.Error()))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	queues, err := c.api.Queues(ctx)
	if err != nil {
		c.logger.Warn("metrics scrape failed", slog.String("error", err.Error()))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for state, n := range map[string]int64{
		"enqueued":   stats.Enqueued,
		"scheduled":  stats.Scheduled,
		"processing": stats.Processing,
		"succeeded":  stats.Succeeded,
		"failed":     stats.Failed,
		"deleted":    stats.Deleted,
	} {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(n), state)
	}
	ch <- prometheus.MustNewConstMetric(c.servers, prometheus.GaugeValue, float64(stats.Servers))
	ch <- prometheus.MustNewConstMetric(c.recurring, prometheus.GaugeValue, float64(stats.Recurring))
	for _, q := range queues {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(q.Length), q.Name, "enqueued")
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(q.Fetched), q.Name, "fetched")
	}
}
