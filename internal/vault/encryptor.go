// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// encryptionSalt binds derived keys to this application's secret
	// storage use case.
	encryptionSalt = "manicsync-credential-vault"

	// encryptionInfo is the HKDF info parameter for key derivation.
	encryptionInfo = "secret-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptyKey is returned when the master key material is empty.
	ErrEmptyKey = errors.New("vault: encryption key cannot be empty")
	// ErrDecryptionFailed is returned for tampered or foreign ciphertext.
	ErrDecryptionFailed = errors.New("vault: decryption failed")
	// ErrInvalidCiphertext is returned when the ciphertext encoding is bad.
	ErrInvalidCiphertext = errors.New("vault: invalid ciphertext format")
	// ErrCiphertextTooShort is returned when the payload cannot contain a
	// nonce and authentication tag.
	ErrCiphertextTooShort = errors.New("vault: ciphertext too short")
)

// Encryptor seals and opens secret values with AES-256-GCM. The AES key is
// derived from the configured master key using HKDF-SHA256.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives a 256-bit key from the master key material and
// prepares the AEAD cipher.
func NewEncryptor(masterKey string) (*Encryptor, error) {
	if masterKey == "" {
		return nil, ErrEmptyKey
	}

	hkdfReader := hkdf.New(sha256.New, []byte(masterKey), []byte(encryptionSalt), []byte(encryptionInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: gcm}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext || tag).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptySecret
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCiphertext, err.Error())
	}

	// Minimum: nonce (12) + at least 1 byte + tag.
	if len(data) < gcmNonceSize+1+e.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce := data[:gcmNonceSize]
	plaintext, err := e.aead.Open(nil, nonce, data[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// SelfTest performs a round-trip encrypt/decrypt to verify the setup.
func (e *Encryptor) SelfTest() error {
	const probe = "encryption-validation-test"
	sealed, err := e.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("encryption test failed: %w", err)
	}
	opened, err := e.Decrypt(sealed)
	if err != nil {
		return fmt.Errorf("decryption test failed: %w", err)
	}
	if opened != probe {
		return errors.New("round-trip validation failed")
	}
	return nil
}
