package reconciler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/dqsync/internal/collibra"
)

// fakeCatalog is an in-memory catalog behind the catalog REST surface.
type fakeCatalog struct {
	t  *testing.T
	mu sync.Mutex

	assets     map[string]collibra.Asset
	attributes []collibra.Attribute
	relations  []collibra.RelationSet
	deleted    [][]string
	resps      []collibra.Responsibility
	users      map[string]collibra.User
	next       int

	unauthorized bool
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	return &fakeCatalog{t: t, assets: map[string]collibra.Asset{}, users: map[string]collibra.User{}}
}

func (f *fakeCatalog) seed(id, name, typeID, domainID string) {
	f.assets[id] = collibra.Asset{
		ID:          id,
		Name:        name,
		DisplayName: name,
		Type:        collibra.Reference{ID: typeID},
		Domain:      collibra.Reference{ID: domainID},
	}
}

func (f *fakeCatalog) newID(prefix string) string {
	f.next++
	return fmt.Sprintf("%s-%d", prefix, f.next)
}

func (f *fakeCatalog) assetByName(name string) (collibra.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.Name == name {
			return a, true
		}
	}
	return collibra.Asset{}, false
}

func (f *fakeCatalog) attributeValues(assetID string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]any{}
	for _, a := range f.attributes {
		if a.Asset.ID == assetID {
			out[a.Type.ID] = a.Value
		}
	}
	return out
}

func (f *fakeCatalog) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/2.0/application/info", func(w http.ResponseWriter, _ *http.Request) {
		if f.unauthorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.write(w, http.StatusOK, map[string]any{"version": map[string]any{"fullVersion": "2025.06"}})
	})
	mux.HandleFunc("GET /rest/2.0/assets", f.searchAssets)
	mux.HandleFunc("POST /rest/2.0/assets/bulk", f.createAssets)
	mux.HandleFunc("PATCH /rest/2.0/assets/bulk", f.updateAssets)
	mux.HandleFunc("DELETE /rest/2.0/assets/bulk", f.deleteAssets)
	mux.HandleFunc("GET /rest/2.0/attributes", f.findAttributes)
	mux.HandleFunc("POST /rest/2.0/attributes/bulk", f.createAttributes)
	mux.HandleFunc("PATCH /rest/2.0/attributes/bulk", f.updateAttributes)
	mux.HandleFunc("PUT /rest/2.0/assets/{id}/relations", f.setRelations)
	mux.HandleFunc("GET /rest/2.0/responsibilities", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.write(w, http.StatusOK, map[string]any{"total": len(f.resps), "results": f.resps})
	})
	mux.HandleFunc("GET /rest/2.0/users", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []collibra.User
		for _, id := range r.URL.Query()["userId"] {
			if u, ok := f.users[id]; ok {
				out = append(out, u)
			}
		}
		f.write(w, http.StatusOK, map[string]any{"total": len(out), "results": out})
	})

	s := httptest.NewServer(mux)
	f.t.Cleanup(s.Close)
	return s
}

func (f *fakeCatalog) searchAssets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	name, typeID, domainID := q.Get("name"), q.Get("typeIds"), q.Get("domainId")

	var out []collibra.Asset
	for _, a := range f.assets {
		if typeID != "" && a.Type.ID != typeID {
			continue
		}
		if domainID != "" && a.Domain.ID != domainID {
			continue
		}
		var match bool
		switch q.Get("nameMatchMode") {
		case collibra.MatchExact:
			match = a.Name == name
		case collibra.MatchStart:
			match = strings.HasPrefix(a.Name, name)
		case collibra.MatchEnd:
			match = strings.HasSuffix(a.Name, name)
		default:
			match = strings.Contains(a.Name, name)
		}
		if match {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	f.write(w, http.StatusOK, map[string]any{"total": len(out), "results": out})
}

func (f *fakeCatalog) createAssets(w http.ResponseWriter, r *http.Request) {
	var in []collibra.NewAsset
	f.read(r, &in)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]collibra.Asset, 0, len(in))
	for _, n := range in {
		a := collibra.Asset{
			ID:          f.newID("asset"),
			Name:        n.Name,
			DisplayName: n.DisplayName,
			Domain:      collibra.Reference{ID: n.DomainID},
			Type:        collibra.Reference{ID: n.TypeID},
		}
		f.assets[a.ID] = a
		out = append(out, a)
	}
	f.write(w, http.StatusCreated, out)
}

func (f *fakeCatalog) updateAssets(w http.ResponseWriter, r *http.Request) {
	var in []collibra.AssetChange
	f.read(r, &in)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]collibra.Asset, 0, len(in))
	for _, c := range in {
		a := f.assets[c.ID]
		a.Name, a.DisplayName = c.Name, c.DisplayName
		a.Domain = collibra.Reference{ID: c.DomainID}
		a.Type = collibra.Reference{ID: c.TypeID}
		f.assets[c.ID] = a
		out = append(out, a)
	}
	f.write(w, http.StatusOK, out)
}

func (f *fakeCatalog) deleteAssets(w http.ResponseWriter, r *http.Request) {
	var ids []string
	f.read(r, &ids)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.assets, id)
	}
	f.deleted = append(f.deleted, ids)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeCatalog) findAttributes(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assetID := r.URL.Query().Get("assetId")
	var out []collibra.Attribute
	for _, a := range f.attributes {
		if a.Asset.ID == assetID {
			out = append(out, a)
		}
	}
	f.write(w, http.StatusOK, map[string]any{"total": len(out), "results": out})
}

func (f *fakeCatalog) createAttributes(w http.ResponseWriter, r *http.Request) {
	var in []collibra.NewAttribute
	f.read(r, &in)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]collibra.Attribute, 0, len(in))
	for _, n := range in {
		a := collibra.Attribute{
			ID:    f.newID("attr"),
			Type:  collibra.Reference{ID: n.TypeID},
			Asset: collibra.Reference{ID: n.AssetID},
			Value: n.Value,
		}
		f.attributes = append(f.attributes, a)
		out = append(out, a)
	}
	f.write(w, http.StatusCreated, out)
}

func (f *fakeCatalog) updateAttributes(w http.ResponseWriter, r *http.Request) {
	var in []collibra.AttributeChange
	f.read(r, &in)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []collibra.Attribute
	for _, c := range in {
		for i := range f.attributes {
			if f.attributes[i].ID == c.ID {
				f.attributes[i].Value = c.Value
				out = append(out, f.attributes[i])
			}
		}
	}
	f.write(w, http.StatusOK, out)
}

func (f *fakeCatalog) setRelations(w http.ResponseWriter, r *http.Request) {
	var set collibra.RelationSet
	f.read(r, &set)
	set.AssetID = r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relations = append(f.relations, set)
	out := make([]collibra.Relation, 0, len(set.RelatedAssetIDs))
	for _, id := range set.RelatedAssetIDs {
		out = append(out, collibra.Relation{
			ID:     f.newID("rel"),
			Source: collibra.Reference{ID: set.AssetID},
			Target: collibra.Reference{ID: id},
			Type:   collibra.Reference{ID: set.TypeID},
		})
	}
	f.write(w, http.StatusOK, out)
}

func (f *fakeCatalog) read(r *http.Request, v any) {
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(v))
}

func (f *fakeCatalog) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

// fakeSource is an in-memory quality platform.
type fakeSource struct {
	t  *testing.T
	mu sync.Mutex

	datasets []map[string]any
	checks   map[string][]map[string]any
	users    map[string][]map[string]any
	owners   map[string][]string
}

func newFakeSource(t *testing.T) *fakeSource {
	return &fakeSource{
		t:      t,
		checks: map[string][]map[string]any{},
		users:  map[string][]map[string]any{},
		owners: map[string][]string{},
	}
}

func (f *fakeSource) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/test-login", func(w http.ResponseWriter, _ *http.Request) {
		f.write(w, map[string]any{"organisationName": "Acme"})
	})
	mux.HandleFunc("GET /api/v1/datasets", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.write(w, map[string]any{"content": f.datasets, "totalPages": 1, "totalElements": len(f.datasets)})
	})
	mux.HandleFunc("GET /api/v1/checks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		content := f.checks[r.URL.Query().Get("datasetId")]
		f.write(w, map[string]any{"content": content, "totalPages": 1, "totalElements": len(content)})
	})
	mux.HandleFunc("GET /api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		content := f.users[r.URL.Query().Get("search")]
		f.write(w, map[string]any{"content": content, "totalPages": 1, "totalElements": len(content)})
	})
	mux.HandleFunc("POST /api/v1/datasets/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Owners []struct {
				UserID string `json:"userId"`
			} `json:"owners"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		f.owners[id] = nil
		for _, o := range body.Owners {
			f.owners[id] = append(f.owners[id], o.UserID)
		}
		f.write(w, map[string]any{"id": id})
	})

	s := httptest.NewServer(mux)
	f.t.Cleanup(s.Close)
	return s
}

func (f *fakeSource) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}
