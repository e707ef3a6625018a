package naming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/quality"
)

func TestGenerateAssetName(t *testing.T) {
	tests := []struct {
		name string
		in   NameInput
		want string
	}{
		{
			name: "table level",
			in:   NameInput{CheckName: "row_count > 0", Table: "orders", Database: "data platform", Schema: "raw"},
			want: "DATA_PLATFORM-RAW-ORDERS row_count > 0",
		},
		{
			name: "column level",
			in:   NameInput{CheckName: "missing_count(email) = 0", Table: "customers", Database: "DB", Schema: "mart", Column: "e-mail"},
			want: "DB-MART-CUSTOMERS-E_MAIL missing_count(email) = 0",
		},
		{
			name: "defaults",
			in:   NameInput{CheckName: "fresh", Table: "t"},
			want: "DATA_PLATFORM_XYZ-UNKNOWN-T fresh",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateAssetName(tt.in, NewSeen()))
		})
	}
}

func TestGenerateAssetNameDeterministic(t *testing.T) {
	in := NameInput{CheckName: "dup", Table: "ORDERS", Database: "DB", Schema: "RAW"}
	assert.Equal(t, GenerateAssetName(in, NewSeen()), GenerateAssetName(in, NewSeen()))
}

func TestGenerateAssetNameCollisions(t *testing.T) {
	in := NameInput{CheckName: "dup", Table: "ORDERS", Database: "DB", Schema: "RAW"}
	seen := NewSeen()
	assert.Equal(t, "DB-RAW-ORDERS dup", GenerateAssetName(in, seen))
	assert.Equal(t, "DB-RAW-ORDERS dup (1)", GenerateAssetName(in, seen))
	assert.Equal(t, "DB-RAW-ORDERS dup (2)", GenerateAssetName(in, seen))
	assert.Len(t, seen, 3)
}

func TestBelongsTo(t *testing.T) {
	key := DatasetKey("DB", "RAW", "ORDERS")
	assert.True(t, BelongsTo("DB-RAW-ORDERS row_count", key))
	assert.True(t, BelongsTo("DB-RAW-ORDERS-ID missing", key))
	assert.False(t, BelongsTo("DB-RAW-ORDERS_2 row_count", key))
	assert.False(t, BelongsTo("DB-RAW-ORDERS", key))
	assert.False(t, BelongsTo("DB-MART-ORDERS row_count", key))
}

func TestResolveDatabaseAndSchema(t *testing.T) {
	ctx := context.Background()

	db, schema := ResolveDatabaseAndSchema(ctx, quality.Dataset{Name: "orders", QualifiedName: "db.staging.orders"}, "WAREHOUSE")
	assert.Equal(t, "WAREHOUSE", db)
	assert.Equal(t, "STAGING", schema)

	_, schema = ResolveDatabaseAndSchema(ctx, quality.Dataset{Name: "orders", Datasource: quality.Datasource{Name: "data_platform_xyz_raw"}}, "")
	assert.Equal(t, "RAW", schema)

	logger := logging.NewTestLogger(t)
	ctx = logging.WithLogger(ctx, logger.Logger)
	db, schema = ResolveDatabaseAndSchema(ctx, quality.Dataset{Name: "orders", Datasource: quality.Datasource{Name: "snowflake"}}, "")
	assert.Equal(t, "DATA PLATFORM XYZ", db)
	assert.Equal(t, "UNKNOWN", schema)
	logger.AssertContains(t, "Could not determine schema")
}

func TestFullNames(t *testing.T) {
	ds := quality.Dataset{Name: "ORDERS", Datasource: quality.Datasource{Prefix: "DB.RAW"}}
	assert.Equal(t, "DB>RAW>ORDERS", DatasetFullName(ds, ">"))
	assert.Equal(t, "DB>RAW>ORDERS>customer_id(column)", ColumnFullName("DB>RAW>ORDERS", "customer_id", ">"))
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(`{"finance": "dom-fin", "sales": "dom-sales"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"finance": "dom-fin", "sales": "dom-sales"}, m)

	m, err = ParseMapping("  ")
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = ParseMapping(`{"broken": `)
	assert.Error(t, err)
}

func TestDomainResolver(t *testing.T) {
	r, err := NewDomainResolver(`{"finance":"dom-fin"}`, "domain", "dom-default")
	require.NoError(t, err)

	assert.Equal(t, "dom-fin", r.Resolve(quality.Dataset{Attributes: map[string]any{"domain": "finance"}}))
	assert.Equal(t, "dom-default", r.Resolve(quality.Dataset{Attributes: map[string]any{"domain": "hr"}}))
	assert.Equal(t, "dom-default", r.Resolve(quality.Dataset{}))
}
