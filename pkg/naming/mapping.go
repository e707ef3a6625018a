package naming

import (
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/quality"
)

// ParseMapping parses a JSON (or inline YAML) object of string values. An
// empty string yields an empty map.
func ParseMapping(raw string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.WrapParse("mapping", truncate(raw, 80), err)
	}
	for k, v := range parsed {
		out[k] = quality.Stringify(v)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DomainResolver maps a dataset attribute value to a catalog domain id.
// It is built once per run.
type DomainResolver struct {
	attribute     string
	mapping       map[string]string
	defaultDomain string
}

// NewDomainResolver parses mappingJSON and returns a resolver reading the
// named dataset attribute.
func NewDomainResolver(mappingJSON, attribute, defaultDomain string) (*DomainResolver, error) {
	mapping, err := ParseMapping(mappingJSON)
	if err != nil {
		return nil, err
	}
	return &DomainResolver{attribute: attribute, mapping: mapping, defaultDomain: defaultDomain}, nil
}

// Resolve returns the mapped domain for the dataset, or the default domain
// when the attribute is absent or unmapped.
func (r *DomainResolver) Resolve(ds quality.Dataset) string {
	if value, ok := ds.Attribute(r.attribute); ok && value != "" {
		if id, ok := r.mapping[value]; ok {
			return id
		}
	}
	return r.defaultDomain
}

// Mapping returns a copy of the parsed mapping.
func (r *DomainResolver) Mapping() map[string]string {
	out := make(map[string]string, len(r.mapping))
	for k, v := range r.mapping {
		out[k] = v
	}
	return out
}
