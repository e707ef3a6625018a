package collibra

// Name match modes for asset search.
const (
	MatchExact    = "EXACT"
	MatchStart    = "START"
	MatchEnd      = "END"
	MatchAnywhere = "ANYWHERE"
)

// Relation directions.
const (
	ToTarget = "TO_TARGET"
	ToSource = "TO_SOURCE"
)

// Responsibility owner resource types.
const (
	OwnerUser      = "User"
	OwnerUserGroup = "UserGroup"
)

// Structured error codes the client interprets.
const (
	codeAttributeTypeNotFound = "attTypeNotFoundId"
	codeRelationTypeNotFound  = "relationTypeNotFoundId"
	codeAssetAlreadyInProcess = "assetAlreadyInProcess"
)

// Version is a catalog version.
type Version struct {
	Major          int    `json:"major"`
	Minor          int    `json:"minor"`
	FullVersion    string `json:"fullVersion"`
	DisplayVersion string `json:"displayVersion,omitempty"`
}

// ApplicationInfo is returned by the connection test.
type ApplicationInfo struct {
	BaseURL     string  `json:"baseUrl"`
	Version     Version `json:"version"`
	BuildNumber string  `json:"buildNumber"`
}

// Reference points at another catalog resource.
type Reference struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
}

// Asset is a catalog asset.
type Asset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Domain      Reference `json:"domain"`
	Type        Reference `json:"type"`
}

// AssetPage is one page of an asset search.
type AssetPage struct {
	Total   int     `json:"total"`
	Offset  int     `json:"offset"`
	Limit   int     `json:"limit"`
	Results []Asset `json:"results"`
}

// AssetQuery selects assets by name and type, optionally within a domain.
type AssetQuery struct {
	Name      string
	TypeID    string
	DomainID  string
	MatchMode string
}

// NewAsset is an asset to create.
type NewAsset struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	DomainID    string `json:"domainId"`
	TypeID      string `json:"typeId"`
}

// AssetChange updates an existing asset, including moving it between domains.
type AssetChange struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	TypeID      string `json:"typeId"`
	DomainID    string `json:"domainId"`
}

// Attribute is a typed value on an asset. Value is a string or a bool.
type Attribute struct {
	ID    string    `json:"id"`
	Type  Reference `json:"type"`
	Asset Reference `json:"asset"`
	Value any       `json:"value"`
}

// NewAttribute is an attribute to create.
type NewAttribute struct {
	AssetID string `json:"assetId"`
	TypeID  string `json:"typeId"`
	Value   any    `json:"value"`
}

// AttributeChange updates an existing attribute. TypeID is kept for partial
// batch handling and is not sent.
type AttributeChange struct {
	ID     string `json:"id"`
	Value  any    `json:"value"`
	TypeID string `json:"-"`
}

// RelationSet replaces the relations of one type on an asset.
type RelationSet struct {
	AssetID         string   `json:"-"`
	TypeID          string   `json:"typeId"`
	RelatedAssetIDs []string `json:"relatedAssetIds"`
	Direction       string   `json:"relationDirection"`
}

// Relation is a typed edge between two assets.
type Relation struct {
	ID     string    `json:"id"`
	Source Reference `json:"source"`
	Target Reference `json:"target"`
	Type   Reference `json:"type"`
}

// Responsibility assigns a role on a resource to a user or group.
type Responsibility struct {
	ID    string    `json:"id"`
	Role  Reference `json:"role"`
	Owner Reference `json:"owner"`
}

// ResponsibilityQuery selects responsibilities on a resource.
type ResponsibilityQuery struct {
	ResourceID string
	RoleID     string
}

// User is a catalog user.
type User struct {
	ID           string `json:"id"`
	UserName     string `json:"userName"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
}

// UserQuery selects users by id or by group membership.
type UserQuery struct {
	UserIDs []string
	GroupID string
}

// Sync statuses of a metadata synchronization trigger.
const (
	SyncTriggered        = "triggered"
	SyncTriggeredNoJobID = "triggered_no_job_id"
	SyncAlreadyRunning   = "already_running"
)

// MetadataSync is the outcome of triggering a database metadata sync.
type MetadataSync struct {
	JobID               string   `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	DatabaseID          string   `json:"databaseId" yaml:"databaseId"`
	SchemaConnectionIDs []string `json:"schemaConnectionIds" yaml:"schemaConnectionIds"`
	Status              string   `json:"status" yaml:"status"`
	Message             string   `json:"message,omitempty" yaml:"message,omitempty"`
}

type page[T any] struct {
	Total   int `json:"total"`
	Results []T `json:"results"`
}
