// Package vault provides key derivation and authenticated encryption for
// recovery records. All operations are pure transforms; persisting the salt
// and guarding the password are the caller's responsibility.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"

	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

// Argon2id parameters. The encrypted store may live in a shared location, so
// the derivation must stay expensive for an offline attacker.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	keyLen       = 32
	saltLen      = 16
)

// Key is a derived symmetric key.
type Key []byte

// DeriveKey derives a symmetric key from the operator password and the
// persisted repository salt. Deterministic: the same inputs always yield the
// same key. The password is NFC-normalized first so the same passphrase typed
// on different platforms derives the same key.
func DeriveKey(password, salt string) (Key, error) {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, errclass.ErrCrypto.WithMessagef("malformed salt: %v", err)
	}
	secret := norm.NFC.String(password)
	return Key(argon2.IDKey([]byte(secret), rawSalt, argonTime, argonMemory, argonThreads, keyLen)), nil
}

// GenerateSalt returns a fresh random salt in its persisted (base64) form.
// It is generated once per repository and must stay stable thereafter;
// changing it orphans every existing recovery record.
func GenerateSalt() (string, error) {
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", errclass.ErrCrypto.WithMessagef("generate salt: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Encrypt seals plaintext under key with AES-256-GCM. Each call draws a fresh
// random nonce; the returned blob self-contains nonce, ciphertext, and
// authentication tag, base64-encoded for the storage layer.
func Encrypt(key Key, plaintext string) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errclass.ErrCrypto.WithMessagef("generate nonce: %v", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. A wrong key, truncated blob, or
// tampered record yields ErrAuthentication; no partial plaintext is ever
// returned.
func Decrypt(key Key, blob string) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", errclass.ErrAuthentication.WithMessagef("malformed blob: %v", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", errclass.ErrAuthentication.WithMessage("blob shorter than nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errclass.ErrAuthentication.WithMessage("integrity check failed (wrong password or corrupted record)")
	}
	return string(plaintext), nil
}

func newAEAD(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errclass.ErrCrypto.WithMessagef("init cipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errclass.ErrCrypto.WithMessagef("init gcm: %v", err)
	}
	return aead, nil
}
