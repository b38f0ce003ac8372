package token

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const obfuscatedPrefix = "obf1:"

// Obfuscator applies a reversible XOR transform keyed by a build-time secret
// so the refresh token is not stored as plaintext. It is a deterrent against
// casual inspection of the storage file only: the secret ships inside the
// binary, so anyone with the binary can reverse it. It is not a security
// boundary.
type Obfuscator struct {
	secret []byte
}

// NewObfuscator returns nil for an empty secret; a nil Obfuscator must not be
// installed on a Store.
func NewObfuscator(secret string) *Obfuscator {
	if secret == "" {
		return nil
	}
	return &Obfuscator{secret: []byte(secret)}
}

func (o *Obfuscator) Obfuscate(plain string) string {
	return obfuscatedPrefix + base64.RawURLEncoding.EncodeToString(o.xor([]byte(plain)))
}

// Reveal reverses Obfuscate. Values written before obfuscation was enabled
// carry no prefix and are returned unchanged.
func (o *Obfuscator) Reveal(value string) (string, error) {
	if !strings.HasPrefix(value, obfuscatedPrefix) {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, obfuscatedPrefix))
	if err != nil {
		return "", fmt.Errorf("reveal obfuscated token: %w", err)
	}
	return string(o.xor(raw)), nil
}

func (o *Obfuscator) xor(in []byte) []byte {
	stream := make([]byte, len(in))
	kdf := hkdf.New(sha256.New, o.secret, nil, []byte("storefront refresh token"))
	// hkdf output is capped at 255 hash blocks; cycle the stream past that.
	block := len(stream)
	if limit := 255 * sha256.Size; block > limit {
		block = limit
	}
	if _, err := io.ReadFull(kdf, stream[:block]); err != nil {
		panic(fmt.Sprintf("hkdf keystream: %v", err))
	}
	for i := block; i < len(stream); i++ {
		stream[i] = stream[i%block]
	}

	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ stream[i]
	}
	return out
}
