// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package vault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/manicsync/manicsync/internal/models"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	enc, err := NewEncryptor(testMasterKey)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}
	return NewBadgerStore(db, enc)
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testMasterKey)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}

	sealed, err := enc.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if sealed == "hunter2" {
		t.Fatal("ciphertext equals plaintext")
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if opened != "hunter2" {
		t.Errorf("Decrypt() = %q, want %q", opened, "hunter2")
	}
}

func TestEncryptorUniqueNonce(t *testing.T) {
	enc, _ := NewEncryptor(testMasterKey)
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("identical plaintext must produce distinct ciphertext")
	}
}

func TestEncryptorRejections(t *testing.T) {
	if _, err := NewEncryptor(""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key error = %v, want ErrEmptyKey", err)
	}

	enc, _ := NewEncryptor(testMasterKey)
	if _, err := enc.Encrypt(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty plaintext error = %v, want ErrEmptySecret", err)
	}
	if _, err := enc.Decrypt("not-base64!!!"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("bad base64 error = %v, want ErrInvalidCiphertext", err)
	}
	if _, err := enc.Decrypt("YWJj"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("short ciphertext error = %v, want ErrCiphertextTooShort", err)
	}

	other, _ := NewEncryptor(strings.Repeat("x", 32))
	sealed, _ := other.Encrypt("secret")
	if _, err := enc.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("foreign key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestBadgerStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "u1", models.SecretAccessToken, "tok-abc"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := store.Get(ctx, "u1", models.SecretAccessToken)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != "tok-abc" {
		t.Errorf("Get() = %q, want %q", got, "tok-abc")
	}

	// Stored value must be sealed, not plaintext.
	err = store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(secretKey("u1", models.SecretAccessToken))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if strings.Contains(string(val), "tok-abc") {
				t.Error("secret stored in plaintext")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("raw read failed: %v", err)
	}
}

func TestBadgerStoreMissAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nobody", models.SecretClientSecret); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Get() on missing = %v, want ErrSecretNotFound", err)
	}

	if err := store.Put(ctx, "u2", models.SecretClientSecret, "cs"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := store.Put(ctx, "u2", models.SecretAccessToken, "at"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	if err := store.Delete(ctx, "u2", models.SecretClientSecret); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, "u2", models.SecretClientSecret); !errors.Is(err, ErrSecretNotFound) {
		t.Error("secret still present after Delete()")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "u2", models.SecretClientSecret); err != nil {
		t.Errorf("repeated Delete() failed: %v", err)
	}

	if err := store.DeleteAll(ctx, "u2"); err != nil {
		t.Fatalf("DeleteAll() failed: %v", err)
	}
	if _, err := store.Get(ctx, "u2", models.SecretAccessToken); !errors.Is(err, ErrSecretNotFound) {
		t.Error("secret survived DeleteAll()")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ab", "****"},
		{"abcd", "****"},
		{"abcdefgh", "****...efgh"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
