// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes password hashing. Changing them affects only new
// credentials; each stored hash records the parameters it used.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2 follows the RFC 9106 second recommended option.
var DefaultArgon2 = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}

const (
	saltSize  = 16
	hashSize  = 32
	tokenSize = 32

	// tokenPrefix marks teamflow session tokens in config files and
	// logs.
	tokenPrefix = "tfs_"
)

// sessionDomainKey separates session token digests from any other
// keyed BLAKE3 use.
var sessionDomainKey = [32]byte{
	't', 'e', 'a', 'm', 'f', 'l', 'o', 'w', '.', 'i', 'd', 'e', 'n', 't', 'i', 't',
	'y', '.', 's', 'e', 's', 's', 'i', 'o', 'n', 0, 0, 0, 0, 0, 0, 0,
}

// passwordHash is a stored credential: the parameters, salt, and
// derived key.
type passwordHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func hashPassword(password string, params Argon2Params) (passwordHash, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return passwordHash{}, fmt.Errorf("identity: generating salt: %w", err)
	}
	return passwordHash{
		params: params,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, hashSize),
	}, nil
}

func (h passwordHash) verify(password string) bool {
	candidate := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.Memory, h.params.Threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(candidate, h.key) == 1
}

// encode renders the hash in the PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
func (h passwordHash) encode() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func decodePasswordHash(encoded string) (passwordHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return passwordHash{}, fmt.Errorf("identity: unrecognized password hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return passwordHash{}, fmt.Errorf("identity: unsupported argon2 version %q", parts[2])
	}
	var h passwordHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return passwordHash{}, fmt.Errorf("identity: parsing argon2 parameters: %w", err)
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return passwordHash{}, fmt.Errorf("identity: decoding salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return passwordHash{}, fmt.Errorf("identity: decoding key: %w", err)
	}
	return h, nil
}

// newToken returns a fresh bearer token.
func newToken() (string, error) {
	raw := make([]byte, tokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("identity: generating token: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// tokenDigest is the stored form of a token.
func tokenDigest(token string) string {
	hasher, err := blake3.NewKeyed(sessionDomainKey[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(token))
	return hex.EncodeToString(hasher.Sum(nil))
}
