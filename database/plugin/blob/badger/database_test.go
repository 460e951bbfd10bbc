// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/fennec/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestStore(t *testing.T) *BlobStoreBadger {
	t.Helper()
	store, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("unexpected error closing store: %s", err)
		}
	})
	return store
}

func TestWithDataDir(t *testing.T) {
	b := &BlobStoreBadger{}
	option := WithDataDir("/tmp/test")

	option(b)

	if b.dataDir != "/tmp/test" {
		t.Errorf("Expected dataDir to be '/tmp/test', got '%s'", b.dataDir)
	}
}

func TestWithBlockCacheSize(t *testing.T) {
	b := &BlobStoreBadger{}
	option := WithBlockCacheSize(123456789)

	option(b)

	if b.blockCacheSize != 123456789 {
		t.Errorf(
			"Expected blockCacheSize to be 123456789, got %d",
			b.blockCacheSize,
		)
	}
}

func TestWithIndexCacheSize(t *testing.T) {
	b := &BlobStoreBadger{}
	option := WithIndexCacheSize(987654321)

	option(b)

	if b.indexCacheSize != 987654321 {
		t.Errorf(
			"Expected indexCacheSize to be 987654321, got %d",
			b.indexCacheSize,
		)
	}
}

func TestWithLogger(t *testing.T) {
	b := &BlobStoreBadger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	option := WithLogger(logger)

	option(b)

	if b.logger != logger {
		t.Errorf("Expected logger to be set correctly")
	}
}

func TestWithPromRegistry(t *testing.T) {
	b := &BlobStoreBadger{}
	registry := prometheus.NewRegistry()
	option := WithPromRegistry(registry)

	option(b)

	if b.promRegistry != registry {
		t.Errorf("Expected promRegistry to be set correctly")
	}
}

func TestWithGc(t *testing.T) {
	b := &BlobStoreBadger{}
	option := WithGc(true)

	option(b)

	if !b.gcEnabled {
		t.Errorf("Expected gcEnabled to be true")
	}
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)

	key := []byte("test-key")
	val := []byte("test-value")

	// Write and commit
	txn := store.NewTransaction(true)
	if err := store.Set(txn, key, val); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Read back
	txn = store.NewTransaction(false)
	got, err := store.Get(txn, key)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !bytes.Equal(got, val) {
		t.Fatalf("expected %q, got %q", val, got)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Delete and verify
	txn = store.NewTransaction(true)
	if err := store.Delete(txn, key); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	if _, err := store.Get(txn, key); !errors.Is(
		err, types.ErrBlobKeyNotFound,
	) {
		t.Fatalf("expected ErrBlobKeyNotFound, got %v", err)
	}
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)

	key := []byte("rollback-key")

	txn := store.NewTransaction(true)
	if err := store.Set(txn, key, []byte("value")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	if _, err := store.Get(txn, key); !errors.Is(
		err, types.ErrBlobKeyNotFound,
	) {
		t.Fatalf("expected ErrBlobKeyNotFound, got %v", err)
	}
}

func TestNilTxn(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(nil, []byte("key")); !errors.Is(
		err, types.ErrNilTxn,
	) {
		t.Fatalf("expected ErrNilTxn, got %v", err)
	}
	if err := store.Set(nil, []byte("key"), []byte("val")); !errors.Is(
		err, types.ErrNilTxn,
	) {
		t.Fatalf("expected ErrNilTxn, got %v", err)
	}
}

func TestIteratorPrefix(t *testing.T) {
	store := newTestStore(t)

	prefix := []byte(types.PayloadBlobKeyPrefix)
	var want [][]byte
	txn := store.NewTransaction(true)
	for i := 0; i < 3; i++ {
		key := types.PayloadBlobKey(bytes.Repeat([]byte{byte(i + 1)}, 32))
		if err := store.Set(txn, key, []byte{byte(i)}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		want = append(want, key)
	}
	// A key outside the prefix must not show up
	if err := store.Set(txn, []byte("zz-other"), []byte("x")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	defer iter.Close()
	var got [][]byte
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		key := item.Key()
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		got = append(got, keyCopy)
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(got))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf(
				"expected key %x at position %d, got %x",
				want[i], i, got[i],
			)
		}
	}
}

func TestCommitTimestampStore(t *testing.T) {
	store := newTestStore(t)

	// Fresh store has no timestamp
	if _, err := store.GetCommitTimestamp(); !errors.Is(
		err, types.ErrBlobKeyNotFound,
	) {
		t.Fatalf("expected ErrBlobKeyNotFound, got %v", err)
	}

	txn := store.NewTransaction(true)
	if err := store.SetCommitTimestamp(12345, txn); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	ts, err := store.GetCommitTimestamp()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ts != 12345 {
		t.Fatalf("expected timestamp 12345, got %d", ts)
	}
}
