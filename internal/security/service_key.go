package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrPublicKey is returned when a browser-safe (anon or publishable) key is configured where the
	// privileged service credential is required.
	ErrPublicKey = errors.New("key is a public client key; a service_role key is required")
	// ErrMalformedKey is returned when a JWT-shaped key cannot be decoded.
	ErrMalformedKey = errors.New("key looks like a JWT but cannot be decoded")
)

const serviceRole = "service_role"

// CheckServiceKey rejects credentials that cannot act as the privileged service key.
// Legacy keys are JWTs whose role claim must be service_role; the signature is not verified because
// only the hosted service holds the signing secret. Opaque secret keys (sb_secret_...) are accepted as is.
func CheckServiceKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is empty")
	}
	if strings.HasPrefix(key, "sb_publishable_") {
		return ErrPublicKey
	}
	if strings.Count(key, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	role, _ := claims["role"].(string)
	switch role {
	case serviceRole:
		return nil
	case "anon", "authenticated":
		return ErrPublicKey
	default:
		return fmt.Errorf("key role %q is not %s", role, serviceRole)
	}
}
