// Package threshold extracts a check's configured threshold and normalizes
// percentage thresholds to the 0-1 range.
package threshold

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentstation/dqsync/pkg/errors"
)

// Input is what a normalizer may inspect.
type Input struct {
	CheckType   string
	Definition  string
	Diagnostics map[string]any
}

// Result is a normalized percentage threshold.
type Result struct {
	// Raw is the extracted value as written, e.g. "5".
	Raw string
	// Percent reports how the percentage was detected.
	Percent Source
	// Decimal is Raw/100 with trailing zeros trimmed, e.g. "0.05".
	Decimal string
}

// Source records which signal classified a threshold as a percentage.
type Source string

const (
	SourceDefinition  Source = "definition"
	SourceDiagnostics Source = "diagnostics"
	// SourceCheckType is the best-effort guess from the check type.
	SourceCheckType Source = "check_type"
)

// Normalizer produces a percentage threshold for a check. ok is false when
// no threshold was found, it is not a percentage, or it is out of range.
type Normalizer interface {
	Normalize(in Input) (Result, bool)
}

var numberPattern = regexp.MustCompile(`[0-9.]+`)

// ToDecimal converts a percentage in [0,100] to its 0-1 decimal string.
func ToDecimal(raw string) (string, error) {
	num := numberPattern.FindString(strings.TrimSpace(raw))
	if num == "" {
		return "", errors.NewValidationError("threshold", raw, "not numeric")
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return "", errors.NewValidationError("threshold", raw, "not numeric")
	}
	if v < 0 || v > 100 {
		return "", errors.NewValidationError("threshold", raw, "percentage must be within [0,100]")
	}
	s := fmt.Sprintf("%.10f", v/100)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s, nil
}
