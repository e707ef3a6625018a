package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/dqsync/pkg/errors"
)

const namespace = "dqsync"

// Recorder is a prometheus.Collector for API traffic and the last run's
// summary counters.
type Recorder struct {
	registry *prometheus.Registry

	apiCalls   *prometheus.CounterVec
	datasets   *prometheus.GaugeVec
	checks     *prometheus.GaugeVec
	attributes *prometheus.GaugeVec
	relations  *prometheus.GaugeVec
	owners     prometheus.Gauge
	errorCount prometheus.Gauge
	duration   prometheus.Gauge
	lastRun    prometheus.Gauge
}

// NewRecorder returns a Recorder registered on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "HTTP exchanges with the remote services.",
		}, []string{"service", "outcome"}),
		datasets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasets",
			Help:      "Datasets in the last run by state.",
		}, []string{"state"}),
		checks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_assets",
			Help:      "Check assets in the last run by operation.",
		}, []string{"operation"}),
		attributes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attributes",
			Help:      "Attributes written in the last run by operation.",
		}, []string{"operation"}),
		relations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relations_created",
			Help:      "Relations created in the last run by kind.",
		}, []string{"kind"}),
		owners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owners_synced",
			Help:      "Owners pushed back to the quality platform in the last run.",
		}),
		errorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors",
			Help:      "Errors recorded in the last run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(r)
	return r
}

// Describe is part of the prometheus.Collector interface.
func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	r.apiCalls.Describe(ch)
	r.datasets.Describe(ch)
	r.checks.Describe(ch)
	r.attributes.Describe(ch)
	r.relations.Describe(ch)
	r.owners.Describe(ch)
	r.errorCount.Describe(ch)
	r.duration.Describe(ch)
	r.lastRun.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	r.apiCalls.Collect(ch)
	r.datasets.Collect(ch)
	r.checks.Collect(ch)
	r.attributes.Collect(ch)
	r.relations.Collect(ch)
	r.owners.Collect(ch)
	r.errorCount.Collect(ch)
	r.duration.Collect(ch)
	r.lastRun.Collect(ch)
}

// Registry returns the registry the recorder is registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordAPICall counts one HTTP exchange.
func (r *Recorder) RecordAPICall(service string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.apiCalls.WithLabelValues(service, outcome).Inc()
}

// Observe sets the run gauges from a summary.
func (r *Recorder) Observe(s *Summary) {
	r.datasets.WithLabelValues("processed").Set(float64(s.DatasetsProcessed))
	r.datasets.WithLabelValues("skipped").Set(float64(s.DatasetsSkipped))
	r.datasets.WithLabelValues("failed").Set(float64(s.DatasetsFailed))
	r.datasets.WithLabelValues("without_table_asset").Set(float64(s.DatasetsWithoutTableAssets))

	r.checks.WithLabelValues("processed").Set(float64(s.ChecksProcessed))
	r.checks.WithLabelValues("created").Set(float64(s.ChecksCreated))
	r.checks.WithLabelValues("updated").Set(float64(s.ChecksUpdated))
	r.checks.WithLabelValues("deleted").Set(float64(s.ChecksDeleted))

	r.attributes.WithLabelValues("created").Set(float64(s.AttributesCreated))
	r.attributes.WithLabelValues("updated").Set(float64(s.AttributesUpdated))

	r.relations.WithLabelValues("dimension").Set(float64(s.DimensionRelationsCreated))
	r.relations.WithLabelValues("table").Set(float64(s.TableRelationsCreated))
	r.relations.WithLabelValues("column").Set(float64(s.ColumnRelationsCreated))

	r.owners.Set(float64(s.OwnersSynced))
	r.errorCount.Set(float64(s.Errors))
	r.duration.Set(s.DurationSeconds)
	r.lastRun.Set(float64(s.EndedAt.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, for
// node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
