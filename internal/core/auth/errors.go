package auth

import "errors"

// Missing or invalid keys map to UNAUTHENTICATED without confirming the key
// exists; revoked keys map to PERMISSION_DENIED.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrNoSecrets        = errors.New("no HMAC secrets configured (set WAYPOINT_HMAC_SECRET)")
	ErrKeyNotFound      = errors.New("API key not found")
)
