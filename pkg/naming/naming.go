// Package naming derives deterministic catalog asset names for checks and
// resolves the catalog domain a dataset's checks belong to.
package naming

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/quality"
)

// Seen tracks the names handed out within one dataset of one run.
type Seen map[string]struct{}

// NewSeen returns an empty set.
func NewSeen() Seen {
	return make(Seen)
}

// Has reports whether name was already handed out.
func (s Seen) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add records name.
func (s Seen) Add(name string) {
	s[name] = struct{}{}
}

// NameInput identifies the check an asset name is derived from.
type NameInput struct {
	CheckName string
	Table     string
	Database  string
	Schema    string
	Column    string
}

// GenerateAssetName builds "DATABASE-SCHEMA-TABLE[-COLUMN] checkName". The
// identifier segments are upper-cased with spaces and hyphens replaced by
// underscores; the check name is kept as is. A name already in seen gets a
// " (n)" suffix with the smallest free n, and the result is added to seen.
func GenerateAssetName(in NameInput, seen Seen) string {
	base := DatasetKey(in.Database, in.Schema, in.Table)
	if in.Column != "" {
		base += "-" + normalize(in.Column)
	}
	base += " " + in.CheckName

	name := base
	for n := 1; seen.Has(name); n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	seen.Add(name)
	return name
}

// DatasetKey is the "DATABASE-SCHEMA-TABLE" prefix shared by every asset
// name of a dataset.
func DatasetKey(database, schema, table string) string {
	if database == "" {
		database = constants.DefaultDatabase
	}
	if schema == "" {
		schema = constants.UnknownSchema
	}
	return normalize(database) + "-" + normalize(schema) + "-" + normalize(table)
}

// BelongsTo reports whether an asset name was generated for the dataset
// identified by key. The key must be followed by the check-name separator
// or a column segment, so TABLE does not claim the assets of TABLE_2.
func BelongsTo(name, key string) bool {
	rest, ok := strings.CutPrefix(name, key)
	if !ok || rest == "" {
		return false
	}
	return rest[0] == ' ' || rest[0] == '-'
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ResolveDatabaseAndSchema returns the database and schema used in asset
// names. The schema is the second segment of the qualified name, else the
// last underscore-separated token of the datasource name, else UNKNOWN.
func ResolveDatabaseAndSchema(ctx context.Context, ds quality.Dataset, database string) (string, string) {
	if database == "" {
		database = constants.DefaultDatabase
	}

	var schema string
	if parts := strings.Split(ds.QualifiedName, "."); ds.QualifiedName != "" && len(parts) >= 2 {
		schema = strings.ToUpper(parts[1])
	}
	if schema == "" && ds.Datasource.Name != "" {
		if parts := strings.Split(ds.Datasource.Name, "_"); len(parts) > 1 {
			schema = strings.ToUpper(parts[len(parts)-1])
		}
	}
	if schema == "" {
		schema = constants.UnknownSchema
		logging.FromContext(ctx).Warn().
			Str("dataset", ds.Name).
			Msg("Could not determine schema for dataset, using UNKNOWN")
	}
	return database, schema
}

// DatasetFullName is the catalog name of the dataset's table asset:
// datasource prefix and dataset name joined by delimiter, with every "."
// replaced by delimiter.
func DatasetFullName(ds quality.Dataset, delimiter string) string {
	full := ds.Datasource.Prefix + delimiter + ds.Name
	return strings.ReplaceAll(full, ".", delimiter)
}

// ColumnFullName is the catalog name of a column asset of table.
func ColumnFullName(table, column, delimiter string) string {
	return table + delimiter + column + constants.ColumnSuffix
}
