package collibra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/dqsync/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(context.Background(), Config{
		BaseURL:        server.URL,
		Username:       "svc",
		Password:       "secret",
		RateLimitDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestApplicationInfo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/2.0/application/info", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"baseUrl": "https://catalog.example.com",
			"version": map[string]any{"major": 2024, "minor": 5, "fullVersion": "2024.05.1"},
		})
	}))

	info, err := client.ApplicationInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.05.1", info.Version.FullVersion)
}

func TestSignInRedirectIsAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/signin")
		w.WriteHeader(http.StatusFound)
	}))

	_, err := client.ApplicationInfo(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
}

func TestFindAssets(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/2.0/assets", r.URL.Path)
		assert.Equal(t, "DB-RAW-ORDERS", q.Get("name"))
		assert.Equal(t, "type-dq", q.Get("typeIds"))
		assert.Equal(t, MatchStart, q.Get("nameMatchMode"))
		assert.Equal(t, "1000", q.Get("limit"))
		assert.Equal(t, "-1", q.Get("countLimit"))
		assert.Equal(t, "true", q.Get("typeInheritance"))
		assert.Equal(t, "dom-1", q.Get("domainId"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total":   1,
			"results": []map[string]any{{"id": "a1", "name": "DB-RAW-ORDERS row_count", "domain": map[string]any{"id": "dom-1"}}},
		})
	}))

	assets, err := client.FindAssets(context.Background(), AssetQuery{
		Name: "DB-RAW-ORDERS", TypeID: "type-dq", DomainID: "dom-1", MatchMode: MatchStart,
	})
	require.NoError(t, err)
	require.Len(t, assets.Results, 1)
	assert.Equal(t, "dom-1", assets.Results[0].Domain.ID)
}

func TestFindAssetsReadsEveryPage(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offsets = append(offsets, q.Get("offset"))
		assert.Equal(t, "2", q.Get("limit"))
		var results []map[string]any
		switch q.Get("offset") {
		case "0":
			results = []map[string]any{{"id": "a1", "name": "T a"}, {"id": "a2", "name": "T b"}}
		case "2":
			results = []map[string]any{{"id": "a3", "name": "T c"}, {"id": "a4", "name": "T d"}}
		case "4":
			results = []map[string]any{{"id": "a5", "name": "T e"}}
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"total": 5, "results": results})
	}))
	t.Cleanup(server.Close)

	client, err := New(context.Background(), Config{BaseURL: server.URL, Username: "svc", Password: "secret", SearchPageSize: 2})
	require.NoError(t, err)

	assets, err := client.FindAssets(context.Background(), AssetQuery{Name: "T", TypeID: "t", MatchMode: MatchStart})
	require.NoError(t, err)
	require.Len(t, assets.Results, 5)
	assert.Equal(t, 5, assets.Total)
	assert.Equal(t, "a5", assets.Results[4].ID)
	assert.Equal(t, []string{"0", "2", "4"}, offsets)
}

func TestFindAssetsStopsOnFullLastPage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total":   2,
			"results": []map[string]any{{"id": "a1", "name": "T a"}, {"id": "a2", "name": "T b"}},
		})
	}))
	t.Cleanup(server.Close)

	client, err := New(context.Background(), Config{BaseURL: server.URL, Username: "svc", Password: "secret", SearchPageSize: 2})
	require.NoError(t, err)

	assets, err := client.FindAssets(context.Background(), AssetQuery{Name: "T", TypeID: "t"})
	require.NoError(t, err)
	assert.Len(t, assets.Results, 2)
	assert.Equal(t, 1, calls)
}

func TestFindAssetsDefaultsToEndMatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MatchEnd, r.URL.Query().Get("nameMatchMode"))
		assert.False(t, r.URL.Query().Has("domainId"))
		w.WriteHeader(http.StatusNoContent)
	}))

	assets, err := client.FindAssets(context.Background(), AssetQuery{Name: "ORDERS", TypeID: "t"})
	require.NoError(t, err)
	assert.Empty(t, assets.Results)
}

func TestCreateAndUpdateAssets(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/2.0/assets/bulk", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		switch r.Method {
		case http.MethodPost:
			assert.JSONEq(t, `[{"name":"n","displayName":"n","domainId":"d","typeId":"t"}]`, string(body))
			writeJSON(t, w, http.StatusCreated, []map[string]any{{"id": "new-1", "name": "n"}})
		case http.MethodPatch:
			assert.JSONEq(t, `[{"id":"a1","name":"n","displayName":"n","typeId":"t","domainId":"d2"}]`, string(body))
			writeJSON(t, w, http.StatusOK, []map[string]any{{"id": "a1", "name": "n", "domain": map[string]any{"id": "d2"}}})
		}
	}))

	created, err := client.CreateAssets(context.Background(), []NewAsset{{Name: "n", DisplayName: "n", DomainID: "d", TypeID: "t"}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "new-1", created[0].ID)

	updated, err := client.UpdateAssets(context.Background(), []AssetChange{{ID: "a1", Name: "n", DisplayName: "n", TypeID: "t", DomainID: "d2"}})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "d2", updated[0].Domain.ID)

	none, err := client.CreateAssets(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeleteAssets(t *testing.T) {
	t.Run("sends ids as array", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `["a1","a2"]`, string(body))
			w.WriteHeader(http.StatusNoContent)
		}))
		require.NoError(t, client.DeleteAssets(context.Background(), []string{"a1", "a2"}))
	})

	t.Run("not found is success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		require.NoError(t, client.DeleteAssets(context.Background(), []string{"gone"}))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		err := client.DeleteAssets(context.Background(), []string{"a1"})
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("no ids is a no-op", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("unexpected request")
		}))
		require.NoError(t, client.DeleteAssets(context.Background(), nil))
	})
}

func TestCreateAttributesDropsMissingType(t *testing.T) {
	var mu sync.Mutex
	var batches [][]NewAttribute
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []NewAttribute
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()

		for _, a := range batch {
			if a.TypeID == "type-missing" {
				writeJSON(t, w, http.StatusNotFound, map[string]any{
					"errorCode":   "attTypeNotFoundId",
					"userMessage": "Attribute type not found",
					"properties":  map[string]string{"id": "type-missing"},
				})
				return
			}
		}
		out := make([]map[string]any, 0, len(batch))
		for i, a := range batch {
			out = append(out, map[string]any{"id": string(rune('x' + i)), "type": map[string]any{"id": a.TypeID}, "value": a.Value})
		}
		writeJSON(t, w, http.StatusCreated, out)
	}))

	created, err := client.CreateAttributes(context.Background(), []NewAttribute{
		{AssetID: "a1", TypeID: "type-1", Value: "pass"},
		{AssetID: "a1", TypeID: "type-missing", Value: "x"},
		{AssetID: "a1", TypeID: "type-2", Value: true},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 2)
}

func TestCreateAttributesAllMissing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{
			"errorCode":  "attTypeNotFoundId",
			"properties": map[string]string{"id": "type-missing"},
		})
	}))

	created, err := client.CreateAttributes(context.Background(), []NewAttribute{{AssetID: "a1", TypeID: "type-missing", Value: "x"}})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestUpdateAttributesOmitsTypeID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"id":"attr-1","value":"fail"}]`, string(body))
		writeJSON(t, w, http.StatusOK, []map[string]any{{"id": "attr-1", "value": "fail"}})
	}))

	updated, err := client.UpdateAttributes(context.Background(), []AttributeChange{{ID: "attr-1", Value: "fail", TypeID: "type-1"}})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "fail", updated[0].Value)
}

func TestFindAttributes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a1", r.URL.Query().Get("assetId"))
		assert.Equal(t, "LAST_MODIFIED", r.URL.Query().Get("sortField"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total": 2,
			"results": []map[string]any{
				{"id": "x1", "type": map[string]any{"id": "type-1"}, "value": "pass"},
				{"id": "x2", "type": map[string]any{"id": "type-2"}, "value": true},
			},
		})
	}))

	attrs, err := client.FindAttributes(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, true, attrs[1].Value)
}

func TestSetRelations(t *testing.T) {
	t.Run("replaces relations", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/rest/2.0/assets/a1/relations", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"typeId":"rel-1","relatedAssetIds":["t1"],"relationDirection":"TO_TARGET"}`, string(body))
			writeJSON(t, w, http.StatusOK, []map[string]any{{"id": "r1", "target": map[string]any{"id": "t1"}}})
		}))
		rels, err := client.SetRelations(context.Background(), RelationSet{AssetID: "a1", TypeID: "rel-1", RelatedAssetIDs: []string{"t1"}})
		require.NoError(t, err)
		require.Len(t, rels, 1)
	})

	t.Run("missing relation type yields nil", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusNotFound, map[string]any{
				"errorCode":  "relationTypeNotFoundId",
				"properties": map[string]string{"id": "rel-1"},
			})
		}))
		rels, err := client.SetRelations(context.Background(), RelationSet{AssetID: "a1", TypeID: "rel-1", RelatedAssetIDs: []string{"t1"}})
		require.NoError(t, err)
		assert.Nil(t, rels)
	})

	t.Run("empty body is success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		rels, err := client.SetRelations(context.Background(), RelationSet{AssetID: "a1", TypeID: "rel-1", RelatedAssetIDs: []string{"t1"}})
		require.NoError(t, err)
		assert.NotNil(t, rels)
	})

	t.Run("other not found is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusNotFound, map[string]any{"errorCode": "assetNotFound", "userMessage": "Asset not found"})
		}))
		_, err := client.SetRelations(context.Background(), RelationSet{AssetID: "a1", TypeID: "rel-1"})
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestResponsibilitiesAndUsers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/2.0/responsibilities":
			assert.Equal(t, "dom-1", r.URL.Query().Get("resourceIds"))
			assert.Equal(t, "role-owner", r.URL.Query().Get("roleIds"))
			assert.Equal(t, "true", r.URL.Query().Get("includeInherited"))
			writeJSON(t, w, http.StatusOK, map[string]any{"results": []map[string]any{
				{"id": "r1", "owner": map[string]any{"id": "u1", "resourceType": OwnerUser}},
				{"id": "r2", "owner": map[string]any{"id": "g1", "resourceType": OwnerUserGroup}},
			}})
		case "/rest/2.0/users":
			assert.Equal(t, []string{"u1", "u2"}, r.URL.Query()["userId"])
			writeJSON(t, w, http.StatusOK, map[string]any{"results": []map[string]any{
				{"id": "u1", "emailAddress": "a@example.com"},
				{"id": "u2", "emailAddress": "b@example.com"},
			}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	resps, err := client.Responsibilities(context.Background(), ResponsibilityQuery{ResourceID: "dom-1", RoleID: "role-owner"})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, OwnerUserGroup, resps[1].Owner.ResourceType)

	users, err := client.Users(context.Background(), UserQuery{UserIDs: []string{"u1", "u2"}})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b@example.com", users[1].EmailAddress)

	_, err = client.Users(context.Background(), UserQuery{})
	assert.True(t, errors.IsValidationError(err))
}

func TestTriggerMetadataSync(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   string
		job    string
	}{
		{name: "job id", status: http.StatusOK, body: map[string]any{"jobId": "job-1"}, want: SyncTriggered, job: "job-1"},
		{name: "id fallback", status: http.StatusOK, body: map[string]any{"id": "job-2"}, want: SyncTriggered, job: "job-2"},
		{name: "no job id", status: http.StatusOK, body: map[string]any{}, want: SyncTriggeredNoJobID},
		{name: "already running code", status: http.StatusConflict, body: map[string]any{"errorCode": "assetAlreadyInProcess"}, want: SyncAlreadyRunning},
		{name: "already running message", status: http.StatusConflict, body: map[string]any{"userMessage": "The asset is already being processed"}, want: SyncAlreadyRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rest/catalogDatabase/v1/databases/db-1/synchronizeMetadata", r.URL.Path)
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"schemaConnectionIds":["sc-1"]}`, string(body))
				writeJSON(t, w, tt.status, tt.body)
			}))
			got, err := client.TriggerMetadataSync(context.Background(), "db-1", []string{"sc-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.job, got.JobID)
		})
	}

	t.Run("other conflict is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusConflict, map[string]any{"errorCode": "somethingElse"})
		}))
		_, err := client.TriggerMetadataSync(context.Background(), "db-1", nil)
		require.Error(t, err)
	})
}

func TestSchemaConnectionIDs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/catalogDatabase/v1/databases/db-1":
			writeJSON(t, w, http.StatusOK, map[string]any{"id": "db-1", "databaseConnectionId": "conn-1"})
		case "/rest/catalogDatabase/v1/schemaConnections":
			assert.Equal(t, "conn-1", r.URL.Query().Get("databaseConnectionId"))
			if r.URL.Query().Get("schemaId") == "s-missing" {
				writeJSON(t, w, http.StatusOK, map[string]any{"results": []any{}})
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": "sc-" + r.URL.Query().Get("schemaId")}}})
		}
	}))

	ids, err := client.SchemaConnectionIDs(context.Background(), "db-1", []string{"s1", "s-missing", "s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sc-s1", "sc-s2"}, ids)
}

func TestWaitForJob(t *testing.T) {
	t.Run("polls until completed", func(t *testing.T) {
		var mu sync.Mutex
		polls := 0
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/jobs/job-1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			mu.Lock()
			polls++
			n := polls
			mu.Unlock()
			status := JobRunning
			if n >= 3 {
				status = JobCompleted
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"id": "job-1", "status": status})
		}))

		job, err := client.WaitForJob(context.Background(), "job-1", WaitOptions{PollInterval: time.Millisecond, MaxWait: time.Minute})
		require.NoError(t, err)
		assert.Equal(t, JobCompleted, job.Status)
		assert.Equal(t, 3, polls)
	})

	t.Run("falls back to alternate endpoint", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/catalogDatabase/v1/jobs/job-2" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"status": JobFailed, "errorMessage": "boom"})
		}))

		job, err := client.WaitForJob(context.Background(), "job-2", WaitOptions{PollInterval: time.Millisecond})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, "job-2", job.ID)
	})

	t.Run("untracked after repeated lookup failures", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		job, err := client.WaitForJob(context.Background(), "job-3", WaitOptions{PollInterval: time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, JobUntracked, job.Status)
	})
}
