// Package quality defines the normalized dataset and check model read from
// the quality monitoring platform. Wire records are converted into these
// types at the client boundary; nothing downstream branches on payload shape.
package quality

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// Kind discriminates quality rules from continuously tracked metrics.
type Kind string

const (
	// KindCheck is a pass/fail rule.
	KindCheck Kind = "check"
	// KindMonitor is a tracked metric.
	KindMonitor Kind = "monitor"
)

// EvaluationPass is the evaluation status of a passing check.
const EvaluationPass = "pass"

// Datasource is the connection a dataset belongs to.
type Datasource struct {
	Name   string `json:"name" yaml:"name"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Owner is a user or group responsible for a dataset.
type Owner struct {
	Type     string `json:"type" yaml:"type"`
	UserID   string `json:"userId,omitempty" yaml:"userId,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	FullName string `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	GroupID  string `json:"groupId,omitempty" yaml:"groupId,omitempty"`
}

// Dataset is a monitored table or view.
type Dataset struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Label         string         `json:"label,omitempty" yaml:"label,omitempty"`
	QualifiedName string         `json:"qualifiedName,omitempty" yaml:"qualifiedName,omitempty"`
	Datasource    Datasource     `json:"datasource" yaml:"datasource"`
	Attributes    map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Owners        []Owner        `json:"owners,omitempty" yaml:"owners,omitempty"`
	Tags          []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	CloudURL      string         `json:"cloudUrl,omitempty" yaml:"cloudUrl,omitempty"`
}

// Attribute returns the string form of a dataset attribute.
func (d Dataset) Attribute(name string) (string, bool) {
	v, ok := d.Attributes[name]
	if !ok || v == nil {
		return "", false
	}
	return Stringify(v), true
}

// SyncEnabled reports whether the named attribute marks the dataset for sync.
// Booleans and the strings true/yes/1 are truthy.
func (d Dataset) SyncEnabled(attribute string) bool {
	v, ok := d.Attributes[attribute]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	}
	switch strings.ToLower(strings.TrimSpace(Stringify(v))) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// Check is a quality rule or monitor on a dataset.
type Check struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Kind             Kind           `json:"kind" yaml:"kind"`
	EvaluationStatus string         `json:"evaluationStatus" yaml:"evaluationStatus"`
	LastCheckRunTime string         `json:"lastCheckRunTime,omitempty" yaml:"lastCheckRunTime,omitempty"`
	Column           string         `json:"column,omitempty" yaml:"column,omitempty"`
	Definition       string         `json:"definition,omitempty" yaml:"definition,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	CloudURL         string         `json:"cloudUrl,omitempty" yaml:"cloudUrl,omitempty"`
	CheckType        string         `json:"checkType,omitempty" yaml:"checkType,omitempty"`
	MetricType       string         `json:"metricType,omitempty" yaml:"metricType,omitempty"`
	// Diagnostics is keyed by diagnostic type; values are the raw metric maps.
	Diagnostics map[string]any `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Passed reports whether the last evaluation passed.
func (c Check) Passed() bool {
	return strings.EqualFold(c.EvaluationStatus, EvaluationPass)
}

// IsMonitor reports whether the check is a monitor.
func (c Check) IsMonitor() bool {
	return c.Kind == KindMonitor
}

// LastRun parses LastCheckRunTime.
func (c Check) LastRun() (utc.Time, bool) {
	if c.LastCheckRunTime == "" {
		return utc.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, c.LastCheckRunTime); err == nil {
			return utc.Time{Time: t.UTC()}, true
		}
	}
	return utc.Time{}, false
}

// RowCounts returns the failed and tested row counts reported in the
// diagnostics. Each is the first non-zero value found across diagnostic
// types; tested falls back from checkRowsTested to datasetRowsTested.
func (c Check) RowCounts() (failed, tested int64) {
	for _, key := range sortedKeys(c.Diagnostics) {
		data, ok := c.Diagnostics[key].(map[string]any)
		if !ok {
			continue
		}
		if failed == 0 {
			failed = toInt(data["failedRowsCount"])
		}
		if tested == 0 {
			tested = toInt(data["checkRowsTested"])
		}
		if tested == 0 {
			tested = toInt(data["datasetRowsTested"])
		}
	}
	return failed, tested
}

// User is a quality platform user.
type User struct {
	ID        string `json:"userId" yaml:"userId"`
	FirstName string `json:"firstName,omitempty" yaml:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty" yaml:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty" yaml:"fullName,omitempty"`
	Email     string `json:"email" yaml:"email"`
}

// Stringify renders a JSON-decoded scalar as text. Lists are joined with commas.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}
