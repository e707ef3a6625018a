// Package ownership copies table ownership from the catalog back to the
// quality platform. The catalog is the source of truth; each sync replaces
// the dataset's owner set with the owners resolved in that run.
package ownership

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/naming"
	"github.com/agentstation/dqsync/pkg/quality"
	"github.com/agentstation/dqsync/pkg/retry"
)

// Catalog is the subset of the catalog client used to resolve owners.
type Catalog interface {
	FindAssets(ctx context.Context, q collibra.AssetQuery) (*collibra.AssetPage, error)
	Responsibilities(ctx context.Context, q collibra.ResponsibilityQuery) ([]collibra.Responsibility, error)
	Users(ctx context.Context, q collibra.UserQuery) ([]collibra.User, error)
}

// Directory is the subset of the quality platform client that holds users
// and dataset owners.
type Directory interface {
	FindUsers(ctx context.Context, term string, size int) ([]quality.User, error)
	UpdateDatasetOwners(ctx context.Context, datasetID string, userIDs []string) (*quality.Dataset, error)
}

// Config selects the catalog table asset and the owner role.
type Config struct {
	TableTypeID     string
	OwnerRoleID     string
	NamingDelimiter string
}

// Result is the outcome of one dataset's ownership sync.
type Result struct {
	OwnersSynced int
	Errors       []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Synchronizer resolves catalog owners to platform users.
type Synchronizer struct {
	catalog   Catalog
	directory Directory
	cfg       Config
	policy    retry.Policy
}

// New creates a Synchronizer. Every remote call is wrapped with policy.
func New(catalog Catalog, directory Directory, cfg Config, policy retry.Policy) *Synchronizer {
	if cfg.NamingDelimiter == "" {
		cfg.NamingDelimiter = constants.DefaultNamingDelimiter
	}
	return &Synchronizer{catalog: catalog, directory: directory, cfg: cfg, policy: policy}
}

// Sync pushes the catalog owners of the dataset's table asset to the
// dataset. Unmatched emails are recorded in the result and do not stop the
// update for the emails that did match.
func (s *Synchronizer) Sync(ctx context.Context, ds quality.Dataset) Result {
	var res Result
	logger := logging.FromContext(ctx)

	table, err := s.tableAsset(ctx, ds)
	if err != nil {
		res.addError("Ownership sync failed: %v", err)
		return res
	}
	if table == nil {
		res.addError("No Collibra asset found for ownership sync")
		return res
	}

	emails, err := s.ownerEmails(ctx, table.ID)
	if err != nil {
		res.addError("Ownership sync failed: %v", err)
		return res
	}
	if len(emails) == 0 {
		logger.Debug().Str("asset_id", table.ID).Msg("No owners assigned in catalog")
		return res
	}

	var userIDs []string
	seen := make(map[string]bool)
	for _, email := range emails {
		user, err := s.matchUser(ctx, email)
		if err != nil {
			res.addError("Ownership sync failed for %s: %v", email, err)
			continue
		}
		if user == nil {
			res.addError("No Soda user found with email: %s", email)
			continue
		}
		if !seen[user.ID] {
			seen[user.ID] = true
			userIDs = append(userIDs, user.ID)
		}
	}
	if len(userIDs) == 0 {
		res.addError("No matching Soda users found for Collibra owners")
		return res
	}

	err = retry.Do(ctx, s.policy, "update dataset owners", func(ctx context.Context) error {
		_, err := s.directory.UpdateDatasetOwners(ctx, ds.ID, userIDs)
		return err
	})
	if err != nil {
		res.addError("Ownership sync failed: %v", err)
		return res
	}
	res.OwnersSynced = len(userIDs)
	logger.Info().Int("owners", len(userIDs)).Msg("Synced dataset owners")
	return res
}

func (s *Synchronizer) tableAsset(ctx context.Context, ds quality.Dataset) (*collibra.Asset, error) {
	name := naming.DatasetFullName(ds, s.cfg.NamingDelimiter)
	page, err := retry.Value(ctx, s.policy, "find table asset", func(ctx context.Context) (*collibra.AssetPage, error) {
		return s.catalog.FindAssets(ctx, collibra.AssetQuery{
			Name:      name,
			TypeID:    s.cfg.TableTypeID,
			MatchMode: collibra.MatchExact,
		})
	})
	if err != nil {
		return nil, err
	}
	switch len(page.Results) {
	case 0:
		return nil, nil
	case 1:
		return &page.Results[0], nil
	default:
		return nil, fmt.Errorf("multiple table assets found for %s (found %d)", name, len(page.Results))
	}
}

// ownerEmails expands user and group responsibilities into distinct emails
// in first-seen order.
func (s *Synchronizer) ownerEmails(ctx context.Context, assetID string) ([]string, error) {
	resps, err := retry.Value(ctx, s.policy, "get responsibilities", func(ctx context.Context) ([]collibra.Responsibility, error) {
		return s.catalog.Responsibilities(ctx, collibra.ResponsibilityQuery{ResourceID: assetID, RoleID: s.cfg.OwnerRoleID})
	})
	if err != nil {
		return nil, err
	}

	var emails []string
	seen := make(map[string]bool)
	for _, r := range resps {
		var q collibra.UserQuery
		switch r.Owner.ResourceType {
		case collibra.OwnerUser:
			q.UserIDs = []string{r.Owner.ID}
		case collibra.OwnerUserGroup:
			q.GroupID = r.Owner.ID
		default:
			logging.FromContext(ctx).Warn().Str("owner_type", r.Owner.ResourceType).Msg("Skipping unsupported owner type")
			continue
		}
		users, err := retry.Value(ctx, s.policy, "get users", func(ctx context.Context) ([]collibra.User, error) {
			return s.catalog.Users(ctx, q)
		})
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			key := strings.ToLower(u.EmailAddress)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			emails = append(emails, u.EmailAddress)
		}
	}
	return emails, nil
}

// matchUser returns the platform user whose email equals email, ignoring case.
func (s *Synchronizer) matchUser(ctx context.Context, email string) (*quality.User, error) {
	users, err := retry.Value(ctx, s.policy, "find user", func(ctx context.Context) ([]quality.User, error) {
		return s.directory.FindUsers(ctx, email, constants.SourceUserSearchSize)
	})
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}
