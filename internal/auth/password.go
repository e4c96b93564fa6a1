package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Cost of hashes minted by HashPassword. Verification reads the cost from
// the stored string, so raising these does not invalidate existing
// security.login.password_hash values.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

var b64 = base64.RawStdEncoding

// phc is a decoded "$argon2id$v=19$m=...,t=...,p=...$salt$key" string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads, b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

// derive computes the key for password under p's salt and cost.
func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key))) //nolint:gosec // key length is small
}

// HashPassword returns an Argon2id PHC string for password, suitable for
// security.login.password_hash. `homesim --hash-password` prints one.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	p := phc{memory: argonMemory, time: argonTime, threads: argonThreads, salt: salt}
	p.key = argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return p.String(), nil
}

// VerifyPassword reports whether password matches encoded in constant time.
// An encoded string that cannot be parsed fails with ErrMalformedHash.
func VerifyPassword(password, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.key, p.derive(password)) == 1, nil
}

func parsePHC(encoded string) (phc, error) {
	var p phc
	malformed := func(format string, args ...any) (phc, error) {
		return phc{}, fmt.Errorf("%w: "+format, append([]any{ErrMalformedHash}, args...)...)
	}

	// A leading "$" leaves an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" { //nolint:mnd // "", alg, version, params, salt, key
		return malformed("want $argon2id$v=..$m=..,t=..,p=..$salt$key")
	}
	if fields[1] != "argon2id" {
		return malformed("unsupported algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return malformed("version: %w", err)
	}
	if version != argon2.Version {
		return malformed("unsupported version %d", version)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return malformed("parameters: %w", err)
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return malformed("zero cost parameter")
	}

	var err error
	if p.salt, err = b64.DecodeString(fields[4]); err != nil {
		return malformed("salt: %w", err)
	}
	if p.key, err = b64.DecodeString(fields[5]); err != nil {
		return malformed("key: %w", err)
	}
	if len(p.key) == 0 {
		return malformed("empty key")
	}
	return p, nil
}
