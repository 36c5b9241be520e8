package security

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedKey(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"iss": "supabase", "ref": "project", "role": role}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestCheckServiceKey_ServiceRoleJWT(t *testing.T) {
	if err := CheckServiceKey(signedKey(t, "service_role")); err != nil {
		t.Fatalf("CheckServiceKey: %v", err)
	}
}

func TestCheckServiceKey_AnonJWT(t *testing.T) {
	err := CheckServiceKey(signedKey(t, "anon"))
	if !errors.Is(err, ErrPublicKey) {
		t.Fatalf("err = %v, want ErrPublicKey", err)
	}
}

func TestCheckServiceKey_UnknownRole(t *testing.T) {
	if err := CheckServiceKey(signedKey(t, "editor")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestCheckServiceKey_OpaqueKeys(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"secret key", "sb_secret_abc123", nil},
		{"publishable key", "sb_publishable_abc123", ErrPublicKey},
		{"malformed jwt", "not.a.jwt", ErrMalformedKey},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckServiceKey(tc.key)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckServiceKey: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCheckServiceKey_Empty(t *testing.T) {
	if err := CheckServiceKey("  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}
