package reconciler

import (
	"github.com/agentstation/dqsync/internal/cache"
	"github.com/agentstation/dqsync/pkg/naming"
)

// RunContext is the mutable state of one run. It is owned by a single run
// and must not be shared between runs.
type RunContext struct {
	// Assets caches asset searches by name and domain.
	Assets *cache.Assets
	// Domains resolves a dataset's catalog domain.
	Domains *naming.DomainResolver
	// CustomAttributes maps check attribute names to catalog attribute type ids.
	CustomAttributes map[string]string

	warnedNoTable map[string]bool
}

// NewRunContext parses the run's mappings and creates empty caches.
func NewRunContext(cfg Config) (*RunContext, error) {
	domains, err := naming.NewDomainResolver(cfg.DomainMapping, cfg.DomainDatasetAttribute, cfg.DefaultDomainID)
	if err != nil {
		return nil, err
	}
	custom, err := naming.ParseMapping(cfg.CustomAttributesMapping)
	if err != nil {
		return nil, err
	}
	return &RunContext{
		Assets:           cache.NewAssets(),
		Domains:          domains,
		CustomAttributes: custom,
		warnedNoTable:    make(map[string]bool),
	}, nil
}

// warnNoTable reports whether this is the first time the dataset is found
// without a table asset in this run.
func (rc *RunContext) warnNoTable(dataset string) bool {
	if rc.warnedNoTable[dataset] {
		return false
	}
	rc.warnedNoTable[dataset] = true
	return true
}
