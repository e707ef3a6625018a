// Package metrics aggregates per-dataset and run-level counters for a sync
// run and exposes them as a summary and as Prometheus metrics.
package metrics

import (
	"strings"
	"sync"

	"github.com/agentstation/utc"
)

// Dataset holds the counters of one dataset.
type Dataset struct {
	Name      string
	StartedAt utc.Time
	EndedAt   utc.Time

	ChecksFound         int
	ChecksCreated       int
	ChecksUpdated       int
	ChecksDeleted       int
	AttributesProcessed int
	RelationsCreated    int
	OwnersSynced        int
	Errors              []string
}

// AddError records a per-dataset error.
func (d *Dataset) AddError(msg string) {
	d.Errors = append(d.Errors, msg)
}

// Overall holds run-level counters. Check counters and owners are filled
// from the per-dataset metrics by Finish.
type Overall struct {
	StartedAt utc.Time
	EndedAt   utc.Time

	DatasetsProcessed          int
	DatasetsSkipped            int
	DatasetsFailed             int
	DatasetsWithoutTableAssets int

	ChecksProcessed int
	ChecksCreated   int
	ChecksUpdated   int
	ChecksDeleted   int

	AttributesCreated int
	AttributesUpdated int

	DimensionRelationsCreated int
	TableRelationsCreated     int
	ColumnRelationsCreated    int

	OwnersSynced        int
	OwnershipSyncFailed int
	DimensionSyncFailed int

	APICallsMade   int
	APICallsFailed int

	Errors []string
}

// AddError records a run-level error.
func (o *Overall) AddError(msg string) {
	o.Errors = append(o.Errors, msg)
}

// Collector tracks the metrics of one run. RecordAPICall may be called
// from any goroutine.
type Collector struct {
	mu       sync.Mutex
	overall  *Overall
	datasets []*Dataset
	recorder *Recorder
	finished bool
	now      func() utc.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithRecorder mirrors API calls and the final summary into a Prometheus recorder.
func WithRecorder(r *Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// WithNow overrides the clock.
func WithNow(now func() utc.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector starts a run.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{now: utc.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.overall = &Overall{StartedAt: c.now()}
	return c
}

// Overall returns the run-level counters for direct updates.
func (c *Collector) Overall() *Overall {
	return c.overall
}

// StartDataset begins tracking a dataset.
func (c *Collector) StartDataset(name string) *Dataset {
	d := &Dataset{Name: name, StartedAt: c.now()}
	c.mu.Lock()
	c.datasets = append(c.datasets, d)
	c.mu.Unlock()
	return d
}

// FinishDataset stamps the dataset end time.
func (c *Collector) FinishDataset(d *Dataset) {
	d.EndedAt = c.now()
}

// Datasets returns the tracked datasets in processing order.
func (c *Collector) Datasets() []*Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Dataset, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// RecordAPICall counts one HTTP exchange.
func (c *Collector) RecordAPICall(service string, ok bool) {
	c.mu.Lock()
	c.overall.APICallsMade++
	if !ok {
		c.overall.APICallsFailed++
	}
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.RecordAPICall(service, ok)
	}
}

// Finish aggregates the per-dataset metrics into the overall counters and
// stamps the end time. Calling it again has no effect.
func (c *Collector) Finish() *Summary {
	c.mu.Lock()
	if !c.finished {
		c.finished = true
		o := c.overall
		for _, d := range c.datasets {
			o.ChecksProcessed += d.ChecksFound
			o.ChecksCreated += d.ChecksCreated
			o.ChecksUpdated += d.ChecksUpdated
			o.ChecksDeleted += d.ChecksDeleted
			o.OwnersSynced += d.OwnersSynced
			if anyContains(d.Errors, "ownership") {
				o.OwnershipSyncFailed++
			}
			if anyContains(d.Errors, "dimension asset") {
				o.DimensionSyncFailed++
			}
			o.Errors = append(o.Errors, d.Errors...)
		}
		o.EndedAt = c.now()
	}
	c.mu.Unlock()

	s := c.Summary()
	if c.recorder != nil {
		c.recorder.Observe(s)
	}
	return s
}

func anyContains(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e), substr) {
			return true
		}
	}
	return false
}

// Summary renders the current counters.
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := c.overall
	end := o.EndedAt
	if end.IsZero() {
		end = c.now()
	}
	duration := end.Time.Sub(o.StartedAt.Time).Seconds()

	s := &Summary{
		StartedAt:                  o.StartedAt,
		EndedAt:                    end,
		DatasetsProcessed:          o.DatasetsProcessed,
		DatasetsSkipped:            o.DatasetsSkipped,
		DatasetsFailed:             o.DatasetsFailed,
		DatasetsWithoutTableAssets: o.DatasetsWithoutTableAssets,
		ChecksProcessed:            o.ChecksProcessed,
		ChecksCreated:              o.ChecksCreated,
		ChecksUpdated:              o.ChecksUpdated,
		ChecksDeleted:              o.ChecksDeleted,
		AttributesCreated:          o.AttributesCreated,
		AttributesUpdated:          o.AttributesUpdated,
		DimensionRelationsCreated:  o.DimensionRelationsCreated,
		TableRelationsCreated:      o.TableRelationsCreated,
		ColumnRelationsCreated:     o.ColumnRelationsCreated,
		OwnersSynced:               o.OwnersSynced,
		OwnershipSyncFailed:        o.OwnershipSyncFailed,
		DimensionSyncFailed:        o.DimensionSyncFailed,
		APICallsMade:               o.APICallsMade,
		APICallsFailed:             o.APICallsFailed,
		Errors:                     len(o.Errors),
		ErrorMessages:              append([]string(nil), o.Errors...),
		DurationSeconds:            duration,
	}
	if duration > 0 {
		s.DatasetsPerSecond = float64(o.DatasetsProcessed) / duration
		s.ChecksPerSecond = float64(o.ChecksProcessed) / duration
	}
	s.TotalOperations = o.ChecksCreated + o.ChecksUpdated +
		o.AttributesCreated + o.AttributesUpdated +
		o.DimensionRelationsCreated + o.TableRelationsCreated + o.ColumnRelationsCreated
	s.SuccessRate = 100
	if attempted := o.DatasetsProcessed + o.DatasetsFailed; attempted > 0 {
		s.SuccessRate = float64(o.DatasetsProcessed) / float64(attempted) * 100
	}
	return s
}
