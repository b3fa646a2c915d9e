package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
)

const minPasswordRunes = 8

var (
	ErrInvalidHash  = errors.New("security: malformed argon2id hash")
	ErrWeakPassword = errors.New("security: password too weak")
)

var b64 = base64.RawStdEncoding

// argonCost is the tunable part of an argon2id hash. It is written into the
// PHC string so hashes stay verifiable after the configuration moves.
type argonCost struct {
	memory  uint32
	passes  uint32
	threads uint8
	keyLen  uint32
}

func (c argonCost) weakerThan(o argonCost) bool {
	return c.memory < o.memory || c.passes < o.passes || c.keyLen < o.keyLen
}

// Hasher produces and checks argon2id password hashes in PHC format.
type Hasher struct {
	cost    argonCost
	saltLen int
}

// NewHasher clamps cfg to sane bounds, so a zero config still hashes.
func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{
		cost: argonCost{
			memory:  uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
			passes:  uint32(clamp(cfg.ArgonTime, 1, 10)),
			threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
			keyLen:  uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
		},
		saltLen: clamp(cfg.ArgonSaltLen, 8, 64),
	}
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrWeakPassword
	}
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := derive(password, salt, h.cost)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.cost.memory, h.cost.passes, h.cost.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. The error is non-nil only
// for a malformed hash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	cost, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, derive(password, salt, cost)) == 1, nil
}

// Outdated reports whether encoded should be re-hashed with the current cost.
func (h *Hasher) Outdated(encoded string) bool {
	cost, _, _, err := parsePHC(encoded)
	return err != nil || cost.weakerThan(h.cost)
}

// CheckStrength enforces the signup password policy.
func CheckStrength(password string) error {
	if len([]rune(password)) < minPasswordRunes {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordRunes)
	}
	letter := strings.IndexFunc(password, unicode.IsLetter) >= 0
	digit := strings.IndexFunc(password, unicode.IsDigit) >= 0
	if !letter || !digit {
		return fmt.Errorf("%w: must mix letters and digits", ErrWeakPassword)
	}
	return nil
}

func derive(password string, salt []byte, c argonCost) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memory, c.threads, c.keyLen)
}

func parsePHC(encoded string) (argonCost, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	var c argonCost
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &c.memory, &c.passes, &c.threads); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	c.keyLen = uint32(len(key))
	return c, salt, key, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
