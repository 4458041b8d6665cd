// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/manicsync/manicsync/internal/metrics"
	"github.com/manicsync/manicsync/internal/models"
)

const secretKeyPrefix = "secret:"

// BadgerStore is a BadgerDB-backed Store. Values are encrypted before they
// reach the transaction.
type BadgerStore struct {
	db        *badger.DB
	encryptor *Encryptor
	ownsDB    bool
}

// Open opens (or creates) a vault at the given path.
func Open(path, masterKey string) (*BadgerStore, error) {
	enc, err := NewEncryptor(masterKey)
	if err != nil {
		return nil, err
	}
	if err := enc.SelfTest(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty for a secret store
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault at %s: %w", path, err)
	}

	return &BadgerStore{db: db, encryptor: enc, ownsDB: true}, nil
}

// NewBadgerStore wraps an already-open BadgerDB. The caller keeps ownership
// of the database lifecycle.
func NewBadgerStore(db *badger.DB, encryptor *Encryptor) *BadgerStore {
	return &BadgerStore{db: db, encryptor: encryptor}
}

func secretKey(userID string, kind models.SecretKind) []byte {
	return []byte(secretKeyPrefix + userID + ":" + string(kind))
}

// Put stores or replaces a secret for the user.
func (s *BadgerStore) Put(ctx context.Context, userID string, kind models.SecretKind, value string) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		metrics.RecordVaultOperation("store", false)
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(secretKey(userID, kind), []byte(sealed))
	})
	metrics.RecordVaultOperation("store", err == nil)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Get returns the decrypted secret, or ErrSecretNotFound.
func (s *BadgerStore) Get(ctx context.Context, userID string, kind models.SecretKind) (string, error) {
	var sealed string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(secretKey(userID, kind))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSecretNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		return item.Value(func(val []byte) error {
			sealed = string(val)
			return nil
		})
	})
	if err != nil {
		metrics.RecordVaultOperation("get", errors.Is(err, ErrSecretNotFound))
		return "", err
	}

	plaintext, err := s.encryptor.Decrypt(sealed)
	metrics.RecordVaultOperation("get", err == nil)
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

// Delete removes one secret kind for the user.
func (s *BadgerStore) Delete(ctx context.Context, userID string, kind models.SecretKind) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(secretKey(userID, kind)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	metrics.RecordVaultOperation("delete", err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// DeleteAll removes every secret kind for the user.
func (s *BadgerStore) DeleteAll(ctx context.Context, userID string) error {
	for _, kind := range models.AllSecretKinds {
		if err := s.Delete(ctx, userID, kind); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database when this store owns it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
