// Package registry stores rule set revisions and serves compiled programs
// and cached resolutions on top of them.
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/waypoint/internal/core/db"
	"github.com/solatis/waypoint/internal/types"
)

// RuleSet is one stored revision of a service's rule document.
// The newest revision of a service is the active one.
type RuleSet struct {
	ID        types.RuleSetID `db:"rule_set_id"`
	Service   string          `db:"service"`
	Document  string          `db:"document"`
	Checksum  string          `db:"checksum"`
	CreatedAt time.Time       `db:"created_at"`
}

// Summary is a RuleSet without its document.
type Summary struct {
	ID        types.RuleSetID `db:"rule_set_id"`
	Service   string          `db:"service"`
	Checksum  string          `db:"checksum"`
	CreatedAt time.Time       `db:"created_at"`
}

// Store persists rule set revisions through named queries.
type Store struct {
	queries *db.Queries
}

// NewStore creates a store over loaded queries.
func NewStore(queries *db.Queries) *Store {
	return &Store{queries: queries}
}

// Checksum returns the hex sha256 of a raw document.
func Checksum(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// Insert stores document as a new revision of service.
func (s *Store) Insert(ctx context.Context, service string, document []byte) (*RuleSet, error) {
	if service == "" {
		return nil, fmt.Errorf("%w: service name is empty", types.ErrInvalidDocument)
	}
	rs := &RuleSet{
		ID:        types.NewRuleSetID(),
		Service:   service,
		Document:  string(document),
		Checksum:  Checksum(document),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.queries.Exec(ctx, "insert-rule-set", string(rs.ID), rs.Service, rs.Document, rs.Checksum, rs.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert rule set for %s: %w", service, err)
	}
	return rs, nil
}

// Latest returns the active revision of service.
func (s *Store) Latest(ctx context.Context, service string) (*RuleSet, error) {
	var rs RuleSet
	err := s.queries.Get(ctx, "get-latest-rule-set", &rs, service)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: service %s", types.ErrRuleSetNotFound, service)
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set for %s: %w", service, err)
	}
	return &rs, nil
}

// Get returns one revision by id.
func (s *Store) Get(ctx context.Context, id types.RuleSetID) (*RuleSet, error) {
	var rs RuleSet
	err := s.queries.Get(ctx, "get-rule-set", &rs, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", types.ErrRuleSetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set %s: %w", id, err)
	}
	return &rs, nil
}

// List returns every revision ordered by service, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := s.queries.Select(ctx, "list-rule-sets", &out); err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	return out, nil
}

// Delete removes one revision. Deleting the active revision reactivates the
// previous one.
func (s *Store) Delete(ctx context.Context, id types.RuleSetID) error {
	res, err := s.queries.Exec(ctx, "delete-rule-set", string(id))
	if err != nil {
		return fmt.Errorf("delete rule set %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule set %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", types.ErrRuleSetNotFound, id)
	}
	return nil
}
