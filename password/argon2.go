// Package password hashes and verifies passwords with Argon2id.
//
// Hashes are self describing PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<digest>
//
// so parameters can change without invalidating older hashes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// upper bound for parameters read back from a stored hash
	maxMemoryKB uint32 = 1 << 20
)

type (
	Config struct {
		// Memory in KiB
		Memory      uint32
		Time        uint32
		Parallelism uint8
		SaltLength  uint32
		KeyLength   uint32
	}

	Argon2 struct {
		config Config
		rand   io.Reader
	}

	phc struct {
		memory      uint32
		time        uint32
		parallelism uint8
		salt        []byte
		digest      []byte
	}
)

var (
	// ErrMalformedHash is never returned by Verify, which reports a
	// malformed hash as a mismatch.
	ErrMalformedHash = errors.New("password: malformed encoded hash")
)

// DefaultConfig follows the OWASP baseline for argon2id (19 MiB, 2 passes, 1 lane).
func DefaultConfig() Config {
	return Config{
		Memory:      19 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg, rand: rand.Reader}, nil
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password: memory must be >= %v KiB", minMemoryKB)
	case c.Time < minTime:
		return fmt.Errorf("password: time must be >= %v", minTime)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("password: parallelism must be >= %v", minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password: salt length must be >= %v", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password: key length must be >= %v", minKeyLength)
	}
	return nil
}

// Hash derives a new encoded hash using a fresh random salt, so two calls
// with the same password never return the same string.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("password: unable to read salt, cause %w", err)
	}
	digest := argon2.IDKey([]byte(password), salt,
		a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)
	return fmt.Sprintf("$%v$v=%d$m=%d,t=%d,p=%d$%v$%v",
		algorithmID, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest)), nil
}

// Verify recomputes the digest with the parameters embedded in encoded and
// compares it in constant time.
func (a *Argon2) Verify(password, encoded string) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	digest := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.digest)))
	return subtle.ConstantTimeCompare(digest, p.digest) == 1
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the current config.
func (a *Argon2) NeedsRehash(encoded string) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism ||
		uint32(len(p.digest)) != a.config.KeyLength
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrMalformedHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, ErrMalformedHash
	}
	var out phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKB || uint32(n) > maxMemoryKB {
				return nil, ErrMalformedHash
			}
			out.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTime {
				return nil, ErrMalformedHash
			}
			out.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism {
				return nil, ErrMalformedHash
			}
			out.parallelism = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
	}
	if out.memory == 0 || out.time == 0 || out.parallelism == 0 {
		return nil, ErrMalformedHash
	}
	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || uint32(len(out.salt)) < minSaltLength {
		return nil, ErrMalformedHash
	}
	if out.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || uint32(len(out.digest)) < minKeyLength {
		return nil, ErrMalformedHash
	}
	return &out, nil
}
