// Package auth provides HMAC-based API key authentication for rule set
// publishers. Resolution is unauthenticated; importing a rule set over gRPC
// requires a key.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

// principalKey holds the name of the authenticated API key.
const principalKey = contextKey("principal")

// Queries is the subset of *db.Queries used for key lookups.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Select(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Key is a stored API key. The key itself is never stored.
type Key struct {
	ID         string       `db:"api_key_id"`
	Name       string       `db:"name"`
	CreatedAt  time.Time    `db:"created_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets keyed by secret id.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateKey generates and stores a new key named name, signed with the
// lexically greatest secret id (the newest, for UUIDv7 ids). The plaintext
// key is returned once.
func (a *Authenticator) CreateKey(ctx context.Context, name string) (string, *Key, error) {
	if len(a.secrets) == 0 {
		return "", nil, ErrNoSecrets
	}
	if name == "" {
		return "", nil, fmt.Errorf("key name is empty")
	}
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	secretID := ids[len(ids)-1]

	key, hash, err := GenerateAPIKey(secretID, a.secrets[secretID])
	if err != nil {
		return "", nil, err
	}
	k := &Key{ID: uuid.Must(uuid.NewV7()).String(), Name: name, CreatedAt: a.now().Truncate(time.Microsecond)}
	if _, err := a.queries.Exec(ctx, "insert-api-key", k.ID, k.Name, hash, k.CreatedAt); err != nil {
		return "", nil, fmt.Errorf("store API key: %w", err)
	}
	return key, k, nil
}

// RevokeKey marks a key revoked.
func (a *Authenticator) RevokeKey(ctx context.Context, id string) error {
	res, err := a.queries.Exec(ctx, "revoke-api-key", a.now(), id)
	if err != nil {
		return fmt.Errorf("revoke API key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}

// ListKeys returns every stored key.
func (a *Authenticator) ListKeys(ctx context.Context) ([]Key, error) {
	var keys []Key
	if err := a.queries.Select(ctx, "list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("list API keys: %w", err)
	}
	return keys, nil
}

// Authenticate validates apiKey and returns the key's name.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var row struct {
		ID         string       `db:"api_key_id"`
		Name       string       `db:"name"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}
	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// Throttled to one write per minute per key
	if !row.LastUsedAt.Valid || a.now().Sub(row.LastUsedAt.Time) > time.Minute {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now(), row.ID); err != nil {
			a.logger.Warn("failed to update API key last_used_at", zap.String("api_key_id", row.ID), zap.Error(err))
		}
	}
	return row.Name, nil
}

// UnaryInterceptor authenticates calls to the listed full method names and
// passes every other call through.
func (a *Authenticator) UnaryInterceptor(protected ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]bool, len(protected))
	for _, m := range protected {
		guarded[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !guarded[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		principal, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrInvalidKeyFormat), errors.Is(err, ErrUnknownKey), errors.Is(err, ErrInvalidKey):
			return nil, status.Error(codes.Unauthenticated, err.Error())
		default:
			a.logger.Warn("authentication unavailable", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return handler(WithPrincipal(ctx, principal), req)
	}
}

// WithPrincipal returns ctx carrying an authenticated key name.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey, name)
}

// PrincipalFromContext returns the authenticated key name, or "" when the
// call was not authenticated.
func PrincipalFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(principalKey).(string); ok {
		return name
	}
	return ""
}
