package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	DefaultArgonTime    uint32 = 3
	DefaultArgonMemory  uint32 = 64 * 1024 // KiB
	DefaultArgonThreads uint8  = 4
	DefaultArgonKeyLen  uint32 = 32
	argonSaltLen               = 16

	// Upper bounds for parameters read back from stored hashes.
	maxArgonTime   uint32 = 64
	maxArgonMemory uint32 = 1 << 20 // KiB
	maxArgonKeyLen        = 1024
)

var b64 = base64.RawStdEncoding

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

// HasherOption tunes Argon2Hasher cost parameters.
type HasherOption func(*argonParams)

func WithTime(t uint32) HasherOption { return func(p *argonParams) { p.time = t } }
func WithMemory(kib uint32) HasherOption { return func(p *argonParams) { p.memory = kib } }
func WithThreads(n uint8) HasherOption { return func(p *argonParams) { p.threads = n } }
func WithKeyLength(n uint32) HasherOption { return func(p *argonParams) { p.keyLen = n } }

// Argon2Hasher hashes passwords with argon2id and encodes the result in PHC
// string format, so parameters and salt travel with the hash:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
type Argon2Hasher struct {
	params argonParams
}

func NewArgon2Hasher(opts ...HasherOption) *Argon2Hasher {
	p := argonParams{
		time:    DefaultArgonTime,
		memory:  DefaultArgonMemory,
		threads: DefaultArgonThreads,
		keyLen:  DefaultArgonKeyLen,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Argon2Hasher{params: p}
}

// Hash derives a new encoded hash with a fresh random salt.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	defer common.WipeByteArray(key)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. The parameters stored in
// encoded are used, not the hasher's own, so old hashes keep verifying after
// a cost change. A malformed encoded value yields ErrHashCorrupted.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	p, salt, want, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	defer common.WipeByteArray(got)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decodeArgon2(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: unexpected field count", common.ErrHashCorrupted)
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrHashCorrupted, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %q", common.ErrHashCorrupted, parts[2])
	}

	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads)
	if err != nil || n != 3 || p.memory == 0 || p.time == 0 || p.threads == 0 ||
		p.memory > maxArgonMemory || p.time > maxArgonTime {
		return p, nil, nil, fmt.Errorf("%w: bad parameters %q", common.ErrHashCorrupted, parts[3])
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, fmt.Errorf("%w: bad salt", common.ErrHashCorrupted)
	}

	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgonKeyLen {
		return p, nil, nil, fmt.Errorf("%w: bad hash", common.ErrHashCorrupted)
	}
	p.keyLen = uint32(len(key))

	return p, salt, key, nil
}
