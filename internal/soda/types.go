package soda

import (
	"github.com/agentstation/dqsync/pkg/quality"
)

// Organisation is returned by the connection test.
type Organisation struct {
	Name string `json:"organisationName"`
}

// page is the envelope of every paginated list endpoint.
type page[T any] struct {
	Content       []T `json:"content"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

type wireDatasource struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Prefix string `json:"prefix"`
}

type wireUser struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
}

type wireUserGroup struct {
	ID   string `json:"userGroupId"`
	Name string `json:"name"`
}

type wireOwner struct {
	Type      string         `json:"type"`
	User      *wireUser      `json:"user"`
	UserGroup *wireUserGroup `json:"userGroup"`
}

type wireDataset struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Label         string         `json:"label"`
	QualifiedName string         `json:"qualifiedName"`
	Datasource    wireDatasource `json:"datasource"`
	CloudURL      string         `json:"cloudUrl"`
	Owners        []wireOwner    `json:"owners"`
	Attributes    map[string]any `json:"attributes"`
	Tags          []string       `json:"tags"`
}

type wireResultValue struct {
	Value       *float64       `json:"value"`
	Diagnostics map[string]any `json:"diagnostics"`
}

type wireCheck struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	EvaluationStatus     string           `json:"evaluationStatus"`
	LastCheckRunTime     string           `json:"lastCheckRunTime"`
	Column               string           `json:"column"`
	Definition           string           `json:"definition"`
	Attributes           map[string]any   `json:"attributes"`
	CloudURL             string           `json:"cloudUrl"`
	CheckType            string           `json:"checkType"`
	MetricType           string           `json:"metricType"`
	LastCheckResultValue *wireResultValue `json:"lastCheckResultValue"`
}

type ownerUpdate struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type datasetUpdate struct {
	Owners []ownerUpdate `json:"owners"`
}

func (w wireDataset) toDataset() quality.Dataset {
	ds := quality.Dataset{
		ID:            w.ID,
		Name:          w.Name,
		Label:         w.Label,
		QualifiedName: w.QualifiedName,
		Datasource: quality.Datasource{
			Name:   w.Datasource.Name,
			Label:  w.Datasource.Label,
			Type:   w.Datasource.Type,
			Prefix: w.Datasource.Prefix,
		},
		Attributes: w.Attributes,
		Tags:       w.Tags,
		CloudURL:   w.CloudURL,
	}
	if ds.Attributes == nil {
		ds.Attributes = map[string]any{}
	}
	for _, o := range w.Owners {
		owner := quality.Owner{Type: o.Type}
		if o.User != nil {
			owner.UserID = o.User.UserID
			owner.Email = o.User.Email
			owner.FullName = o.User.FullName
		}
		if o.UserGroup != nil {
			owner.GroupID = o.UserGroup.ID
			owner.FullName = o.UserGroup.Name
		}
		ds.Owners = append(ds.Owners, owner)
	}
	return ds
}

func (w wireCheck) toCheck() quality.Check {
	c := quality.Check{
		ID:               w.ID,
		Name:             w.Name,
		EvaluationStatus: w.EvaluationStatus,
		LastCheckRunTime: w.LastCheckRunTime,
		Column:           w.Column,
		Definition:       w.Definition,
		Attributes:       w.Attributes,
		CloudURL:         w.CloudURL,
		CheckType:        w.CheckType,
		MetricType:       w.MetricType,
		Kind:             quality.KindCheck,
	}
	if w.CheckType == "" && w.MetricType != "" {
		c.Kind = quality.KindMonitor
	}
	if c.Attributes == nil {
		c.Attributes = map[string]any{}
	}
	if w.LastCheckResultValue != nil {
		c.Diagnostics = w.LastCheckResultValue.Diagnostics
	}
	return c
}

func (w wireUser) toUser() quality.User {
	return quality.User{
		ID:        w.UserID,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		FullName:  w.FullName,
		Email:     w.Email,
	}
}
