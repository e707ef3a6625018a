// Package constants provides shared constants used throughout dqsync.
// This includes timeouts, page sizes, rate-limit pauses, file permissions
// and the naming conventions shared by the catalog and the reconciler.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the per-request timeout for both REST services
	DefaultHTTPTimeout = 30 * time.Second

	// ConnectionTestTimeout bounds the pre-run connectivity checks
	ConnectionTestTimeout = 15 * time.Second

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// SyncTimeout is the timeout for a full reconciliation run
	SyncTimeout = 2 * time.Hour
)

// Retry constants drive the exponential backoff wrapped around external calls
const (
	// MaxRetries is the maximum number of attempts for a retryable operation
	MaxRetries = 3

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 60 * time.Second
)

// Rate limiting constants for the quality platform
const (
	// SourcePageSize is the page size requested from paginated list endpoints
	SourcePageSize = 1000

	// SourcePauseEvery is the number of pages fetched between pauses
	SourcePauseEvery = 10

	// SourcePageDelay is the pause inserted every SourcePauseEvery pages
	SourcePageDelay = 2 * time.Second

	// SourceUserSearchSize is the page size of a user search by email
	SourceUserSearchSize = 10
)

// SourceRateLimitDelays are the successive waits after a 429 from the quality platform.
var SourceRateLimitDelays = []time.Duration{15 * time.Second, 30 * time.Second}

// Catalog constants
const (
	// CatalogRateLimitDelay is the wait before the single retry after a 429
	CatalogRateLimitDelay = 10 * time.Second

	// CatalogSearchLimit is the page limit for asset searches
	CatalogSearchLimit = 1000

	// CatalogCountLimit disables server-side counting (-1)
	CatalogCountLimit = -1

	// JobPollInterval is the wait between catalog job status checks.
	JobPollInterval = 10 * time.Second

	// JobMaxWait bounds how long a catalog job is awaited.
	JobMaxWait = 1 * time.Hour

	// JobStatusMaxErrors is how many consecutive status lookups may fail
	// before the job is assumed to finish in the background.
	JobStatusMaxErrors = 3
)

// Naming constants
const (
	// DefaultDatabase is used when no database is configured
	DefaultDatabase = "DATA PLATFORM XYZ"

	// DefaultNamingDelimiter joins full names of catalog tables and columns
	DefaultNamingDelimiter = ">"

	// UnknownSchema marks a dataset whose schema could not be derived
	UnknownSchema = "UNKNOWN"

	// ColumnSuffix is appended to catalog column full names
	ColumnSuffix = "(column)"

	// ThresholdAttributeKey is the custom attribute mapping key routed through threshold normalization
	ThresholdAttributeKey = "threshold"

	// DefaultCustomAttributesMapping maps the check description to the catalog description attribute type
	DefaultCustomAttributesMapping = `{"description":"00000000-0000-0000-0000-000000003114"}`
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
