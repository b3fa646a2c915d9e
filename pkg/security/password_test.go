package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/security"
)

func cheapHasher(passes int) *security.Hasher {
	return security.NewHasher(config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        passes,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
}

func TestHasherRoundTrip(t *testing.T) {
	h := cheapHasher(1)
	encoded, err := h.Hash("corner-bakery-42")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	for pw, want := range map[string]bool{"corner-bakery-42": true, "corner-bakery-43": false, "": false} {
		ok, err := h.Verify(pw, encoded)
		if err != nil {
			t.Fatalf("verify %q: %v", pw, err)
		}
		if ok != want {
			t.Fatalf("verify %q = %v, want %v", pw, ok, want)
		}
	}

	again, err := h.Hash("corner-bakery-42")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if again == encoded {
		t.Fatal("two hashes of one password share a salt")
	}
}

func TestHasherRejectsEmptyPassword(t *testing.T) {
	if _, err := cheapHasher(1).Hash(""); !errors.Is(err, security.ErrWeakPassword) {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$!!$a2V5",
	} {
		if _, err := cheapHasher(1).Verify("pw", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("%q: got %v", encoded, err)
		}
	}
}

func TestOutdated(t *testing.T) {
	weak := cheapHasher(1)
	encoded, err := weak.Hash("letters4andnum")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if weak.Outdated(encoded) {
		t.Fatal("hash at current cost reported outdated")
	}
	if !cheapHasher(3).Outdated(encoded) {
		t.Fatal("more passes should mark the hash outdated")
	}
	if !weak.Outdated("garbage") {
		t.Fatal("malformed hashes are always outdated")
	}
}

func TestCheckStrength(t *testing.T) {
	cases := map[string]bool{
		"short1":         false,
		"onlyletters":    false,
		"1234567890":     false,
		"letters4andnum": true,
		"ñandú2024":      true,
	}
	for input, valid := range cases {
		err := security.CheckStrength(input)
		if valid != (err == nil) {
			t.Fatalf("CheckStrength(%q) = %v", input, err)
		}
		if err != nil && !errors.Is(err, security.ErrWeakPassword) {
			t.Fatalf("CheckStrength(%q) wrapped %v", input, err)
		}
	}
}

func TestSecretsEqual(t *testing.T) {
	if !security.SecretsEqual("hook-secret", "hook-secret") {
		t.Fatal("equal secrets should match")
	}
	if security.SecretsEqual("hook", "hook-secret") {
		t.Fatal("different secrets should not match")
	}
	if security.SecretsEqual("", "") {
		t.Fatal("an empty expected secret never matches")
	}
}
