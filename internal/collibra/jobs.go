package collibra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

// Job states reported by the catalog.
const (
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
	JobCanceled  = "CANCELED"
	JobRunning   = "RUNNING"
	// JobUntracked means the sync was triggered but its status could not be read.
	JobUntracked = "TRIGGERED"
)

// Job is the status of an asynchronous catalog job.
type Job struct {
	ID           string `json:"id" yaml:"id"`
	Status       string `json:"status" yaml:"status"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
}

// The job endpoint differs between catalog versions.
var jobPaths = []string{"rest/jobs/", "rest/job/", "rest/catalogDatabase/v1/jobs/"}

// JobStatus returns the current status of a job, trying each known endpoint.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*Job, error) {
	var lastErr error
	for _, prefix := range jobPaths {
		var job Job
		resp, err := c.do(ctx, transport.Request{Method: http.MethodGet, Path: prefix + url.PathEscape(jobID)}, &job)
		if err == nil {
			if job.ID == "" {
				job.ID = jobID
			}
			return &job, nil
		}
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			lastErr = err
			continue
		}
		return nil, errors.WrapResource("get", "job", jobID, err)
	}
	return nil, errors.WrapResource("get", "job", jobID, lastErr)
}

// WaitOptions bounds job polling.
type WaitOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// WaitForJob polls a job until it completes. A failed or canceled job is an
// error. When the status cannot be read several times in a row the job is
// reported as JobUntracked, since the trigger itself succeeded.
func (c *Client) WaitForJob(ctx context.Context, jobID string, opts WaitOptions) (*Job, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.JobPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = constants.JobMaxWait
	}
	logger := logging.FromContext(ctx).With().Str("job_id", jobID).Logger()
	start := c.clock.Now()
	consecutiveErrors := 0

	for {
		elapsed := c.clock.Now().Sub(start)
		if elapsed > opts.MaxWait {
			return nil, errors.NewTimeoutError("job "+jobID, opts.MaxWait.String(), "job did not complete")
		}

		job, err := c.JobStatus(ctx, jobID)
		switch {
		case err != nil:
			if errors.IsCanceled(err) {
				return nil, err
			}
			consecutiveErrors++
			logger.Warn().Err(err).Int("attempt", consecutiveErrors).Msg("Failed to read job status")
			if consecutiveErrors >= constants.JobStatusMaxErrors {
				logger.Warn().Msg("Job status unavailable, sync continues in the background")
				return &Job{ID: jobID, Status: JobUntracked, Message: "status tracking unavailable"}, nil
			}
		default:
			consecutiveErrors = 0
			logger.Info().Str("status", job.Status).Dur("elapsed", elapsed).Msg("Job status")
			switch strings.ToUpper(job.Status) {
			case JobCompleted:
				return job, nil
			case JobFailed:
				msg := job.ErrorMessage
				if msg == "" {
					msg = "unknown error"
				}
				return job, fmt.Errorf("job %s failed: %s", jobID, msg)
			case JobCanceled, "CANCELLED":
				return job, fmt.Errorf("job %s was canceled", jobID)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
		case <-c.clock.After(opts.PollInterval):
		}
	}
}
