package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/waypoint/internal/core/db"
)

const (
	testSecretID = "0123456789abcdef0123456789abcdef"
	protected    = "/waypoint.v1.EndpointResolver/ImportRuleSet"
)

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	_, err = db.MigrateUp(database)
	require.NoError(t, err)
	queries, err := db.LoadQueries(database)
	require.NoError(t, err)
	return NewAuthenticator(map[string][]byte{testSecretID: testSecret}, queries, nil)
}

func TestParseAPIKey(t *testing.T) {
	random := strings.Repeat("ab", 32)
	secretID, data, err := ParseAPIKey(FormatAPIKey(testSecretID, random))
	require.NoError(t, err)
	assert.Equal(t, testSecretID, secretID)
	assert.Equal(t, random, data)

	for name, key := range map[string]string{
		"wrong prefix":  "tk-v1-" + testSecretID + "-" + random,
		"wrong version": "wp-v2-" + testSecretID + "-" + random,
		"short secret":  "wp-v1-0123-" + random,
		"short random":  "wp-v1-" + testSecretID + "-abcd",
		"upper hex":     "wp-v1-" + strings.ToUpper(testSecretID) + "-" + random,
		"extra segment": "wp-v1-" + testSecretID + "-" + random + "-x",
		"empty":         "",
	} {
		_, _, err := ParseAPIKey(key)
		assert.ErrorIs(t, err, ErrInvalidKeyFormat, name)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "wp-v1-"+testSecretID+"-"))
	assert.True(t, VerifyHMAC(hash, ComputeHMAC(testSecret, key)))
	assert.False(t, VerifyHMAC(hash, ComputeHMAC([]byte("other"), key)))

	other, _, err := GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, _, err = GenerateAPIKey("nothex", testSecret)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	key, stored, err := a.CreateKey(ctx, "ci-publisher")
	require.NoError(t, err)

	name, err := a.Authenticate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ci-publisher", name)

	keys, err := a.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].LastUsedAt.Valid, "last_used_at recorded")

	forged := FormatAPIKey(testSecretID, strings.Repeat("0", 64))
	_, err = a.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = a.Authenticate(ctx, FormatAPIKey(strings.Repeat("f", 32), strings.Repeat("0", 64)))
	assert.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, a.RevokeKey(ctx, stored.ID))
	_, err = a.Authenticate(ctx, key)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	assert.ErrorIs(t, a.RevokeKey(ctx, stored.ID), ErrKeyNotFound)
}

func TestCreateKey_Errors(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	_, _, err := a.CreateKey(ctx, "")
	assert.Error(t, err)

	empty := NewAuthenticator(nil, a.queries, nil)
	_, _, err = empty.CreateKey(ctx, "x")
	assert.ErrorIs(t, err, ErrNoSecrets)
}

func TestUnaryInterceptor(t *testing.T) {
	a := newTestAuthenticator(t)
	key, stored, err := a.CreateKey(context.Background(), "publisher")
	require.NoError(t, err)

	interceptor := a.UnaryInterceptor(protected)
	handler := func(ctx context.Context, req any) (any, error) {
		return PrincipalFromContext(ctx), nil
	}
	call := func(method string, md metadata.MD) (any, error) {
		ctx := context.Background()
		if md != nil {
			ctx = metadata.NewIncomingContext(ctx, md)
		}
		return interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}

	got, err := call("/waypoint.v1.EndpointResolver/Resolve", nil)
	require.NoError(t, err)
	assert.Equal(t, "", got, "unprotected methods pass through unauthenticated")

	_, err = call(protected, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = call(protected, metadata.Pairs("x-api-key", "garbage"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	got, err = call(protected, metadata.Pairs("x-api-key", key))
	require.NoError(t, err)
	assert.Equal(t, "publisher", got)

	require.NoError(t, a.RevokeKey(context.Background(), stored.ID))
	_, err = call(protected, metadata.Pairs("x-api-key", key))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAuthenticate_ThrottlesLastUsed(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)
	key, _, err := a.CreateKey(ctx, "p")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return base }
	_, err = a.Authenticate(ctx, key)
	require.NoError(t, err)

	a.now = func() time.Time { return base.Add(30 * time.Second) }
	_, err = a.Authenticate(ctx, key)
	require.NoError(t, err)

	keys, err := a.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, base.Equal(keys[0].LastUsedAt.Time), "last_used_at = %v, want %v", keys[0].LastUsedAt.Time, base)
}

func TestPrincipalFromContext(t *testing.T) {
	assert.Equal(t, "", PrincipalFromContext(context.Background()))
	assert.Equal(t, "x", PrincipalFromContext(WithPrincipal(context.Background(), "x")))
}
