package auth

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	key := []byte("test-signing-key")

	token, err := GenerateToken(42, "teacher", key)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ValidateToken(token, key)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Role != "teacher" {
		t.Fatalf("claims do not round-trip: %+v", claims)
	}
}

func TestTokenRejectedWithWrongKey(t *testing.T) {
	token, err := GenerateToken(42, "teacher", []byte("right-key"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateToken(token, []byte("wrong-key")); err == nil {
		t.Fatal("token signed with another key must not validate")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ValidateToken("not-a-jwt", []byte("key")); err == nil {
		t.Fatal("garbage must not validate")
	}
}
