package threshold

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Keys read from diagnostics, in priority order.
var (
	failKeys      = []string{"greaterThan", "lessThan", "greaterThanOrEqual", "lessThanOrEqual", "mustBe", "mustNotBe"}
	thresholdKeys = []string{"must_be", "must_be_greater_than", "must_be_less_than", "greater_than", "less_than"}
)

// Definition patterns, most specific first.
var definitionPatterns = compileAll(
	`threshold\s*:\s*\n\s+metric\s*:\s*percent\s*\n\s+must_be\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s+metric\s*:\s*percent\s*\n\s+must_be_greater_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s+metric\s*:\s*percent\s*\n\s+must_be_less_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s+must_be\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s+must_be_greater_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s+must_be_less_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s*must_be\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s*must_be_greater_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*\n\s*must_be_less_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*must_be\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*must_be_greater_than\s*:\s*([0-9.]+)`,
	`threshold\s*:\s*must_be_less_than\s*:\s*([0-9.]+)`,
	`must_be\s*:\s*([0-9.]+)`,
	`must_be_greater_than\s*:\s*([0-9.]+)`,
	`must_be_less_than\s*:\s*([0-9.]+)`,
)

var (
	metricPercent      = regexp.MustCompile(`metric\s*:\s*percent`)
	metricPercentSpace = regexp.MustCompile(`metric\s+percent`)
)

// percentCheckTypes are check types that conventionally carry percentage thresholds.
var percentCheckTypes = []string{"missing", "duplicate", "invalid", "failed_rows"}

// proximity is the maximum distance between "threshold" and "percent".
const proximity = 200

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?im)`+p))
	}
	return out
}

// Heuristic reads diagnostics first, then scans the free-text definition.
// When neither marks the threshold as a percentage it falls back to the
// check type, which is a guess.
type Heuristic struct{}

// Normalize implements Normalizer.
func (Heuristic) Normalize(in Input) (Result, bool) {
	raw, ok := diagnosticsValue(in.Diagnostics)
	if !ok {
		raw, ok = definitionValue(in.Definition)
	}
	if !ok {
		return Result{}, false
	}

	src, ok := percentSource(in)
	if !ok {
		return Result{}, false
	}
	dec, err := ToDecimal(raw)
	if err != nil {
		return Result{}, false
	}
	return Result{Raw: raw, Percent: src, Decimal: dec}, true
}

// Structured reads only diagnostics and never guesses.
type Structured struct{}

// Normalize implements Normalizer.
func (Structured) Normalize(in Input) (Result, bool) {
	raw, ok := diagnosticsValue(in.Diagnostics)
	if !ok || !diagnosticsPercent(in.Diagnostics) {
		return Result{}, false
	}
	dec, err := ToDecimal(raw)
	if err != nil {
		return Result{}, false
	}
	return Result{Raw: raw, Percent: SourceDiagnostics, Decimal: dec}, true
}

func percentSource(in Input) (Source, bool) {
	if definitionPercent(in.Definition) {
		return SourceDefinition, true
	}
	if diagnosticsPercent(in.Diagnostics) {
		return SourceDiagnostics, true
	}
	checkType := strings.ToLower(in.CheckType)
	for _, t := range percentCheckTypes {
		if checkType != "" && strings.Contains(checkType, t) {
			return SourceCheckType, true
		}
	}
	return "", false
}

func definitionPercent(def string) bool {
	if def == "" {
		return false
	}
	lower := strings.ToLower(def)
	if metricPercent.MatchString(lower) || metricPercentSpace.MatchString(lower) {
		return true
	}
	t := strings.Index(lower, "threshold")
	p := strings.Index(lower, "percent")
	if t < 0 || p < 0 {
		return false
	}
	d := t - p
	if d < 0 {
		d = -d
	}
	return d < proximity
}

func diagnosticsPercent(diags map[string]any) bool {
	for _, key := range sortedKeys(diags) {
		data, ok := diags[key].(map[string]any)
		if !ok {
			continue
		}
		for _, section := range []string{"threshold", "fail"} {
			if m, ok := data[section].(map[string]any); ok && m["metric"] == "percent" {
				return true
			}
		}
	}
	return false
}

func diagnosticsValue(diags map[string]any) (string, bool) {
	for _, key := range sortedKeys(diags) {
		data, ok := diags[key].(map[string]any)
		if !ok {
			continue
		}
		if fail, ok := data["fail"].(map[string]any); ok {
			for _, k := range failKeys {
				if s, ok := number(fail[k]); ok {
					return s, true
				}
			}
		}
		switch th := data["threshold"].(type) {
		case map[string]any:
			for _, k := range thresholdKeys {
				v, present := th[k]
				if !present {
					continue
				}
				if s, ok := number(v); ok {
					return s, true
				}
				if nested, ok := v.(map[string]any); ok {
					for _, nk := range sortedKeys(nested) {
						if s, ok := number(nested[nk]); ok {
							return s, true
						}
					}
				}
			}
		default:
			if s, ok := number(th); ok {
				return s, true
			}
		}
	}
	return "", false
}

func definitionValue(def string) (string, bool) {
	if def == "" {
		return "", false
	}
	for _, re := range definitionPatterns {
		m := re.FindStringSubmatch(def)
		if m == nil {
			continue
		}
		if _, err := strconv.ParseFloat(m[1], 64); err == nil {
			return m[1], true
		}
		if num := numberPattern.FindString(m[0]); num != "" {
			if _, err := strconv.ParseFloat(num, 64); err == nil {
				return num, true
			}
		}
	}
	return "", false
}

func number(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
