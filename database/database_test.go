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

package database_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type TestTable struct {
	gorm.Model
}

var dbConfig = &database.Config{
	BlobCacheSize: 1 << 20,
	Logger:        nil,
	PromRegistry:  nil,
	DataDir:       "",
}

// newTestDB returns a database backed by a per-test temp dir so state
// doesn't leak between tests through the shared in-memory sqlite cache
func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir:       t.TempDir(),
		BlobCacheSize: 1 << 20,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// TestInMemorySqliteMultipleTransaction tests that our sqlite connection allows multiple
// concurrent transactions when using in-memory mode. This requires special URI flags, and
// this is mostly making sure that we don't lose them
func TestInMemorySqliteMultipleTransaction(t *testing.T) {
	var db *database.Database
	doQuery := func(sleep time.Duration) error {
		txn := db.Metadata().DB().Begin()
		if txn.Error != nil {
			return txn.Error
		}
		if result := txn.First(&TestTable{}); result.Error != nil {
			return result.Error
		}
		time.Sleep(sleep)
		if result := txn.Commit(); result.Error != nil {
			return result.Error
		}
		return nil
	}
	db, err := database.New(dbConfig)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := db.Metadata().DB().AutoMigrate(&TestTable{}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if result := db.Metadata().DB().Create(&TestTable{}); result.Error != nil {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	// The linter calls us on the lack of error checking, but it's a goroutine...
	//nolint:errcheck
	go doQuery(5 * time.Second)
	time.Sleep(1 * time.Second)
	if err := doQuery(0); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestTransactionAtomicity(t *testing.T) {
	db := newTestDB(t)

	ownerKey := bytes.Repeat([]byte{0x01}, 32)
	nameHash := bytes.Repeat([]byte{0x02}, 32)
	txId := bytes.Repeat([]byte{0x03}, 32)
	payload := []byte("raw registration payload")

	writeAll := func(txn *database.Txn) error {
		owner, err := db.SetOwner(ownerKey, txn)
		if err != nil {
			return err
		}
		mapping := &models.Mapping{
			Type:           0,
			NameHash:       nameHash,
			EncryptedValue: []byte("encrypted"),
			OwnerKey:       ownerKey,
			OwnerID:        owner.ID,
			TxId:           txId,
			PrevTxId:       make([]byte, 32),
			RegisterHeight: 42,
		}
		if err := db.SetMapping(mapping, txn); err != nil {
			return err
		}
		return db.SetPayload(txId, payload, txn)
	}

	// A failed transaction must leave no trace in either store
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := writeAll(txn); err != nil {
			return err
		}
		return errors.New("induced failure")
	})
	require.ErrorContains(t, err, "induced failure")
	mapping, err := db.GetMappingByTxId(txId, nil)
	require.NoError(t, err)
	assert.Nil(t, mapping)
	_, err = db.GetPayload(txId, nil)
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)

	// A committed transaction must be visible in both stores
	err = db.Transaction(true).Do(writeAll)
	require.NoError(t, err)
	mapping, err = db.GetMappingByTxId(txId, nil)
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, nameHash, mapping.NameHash)
	assert.Equal(t, uint64(42), mapping.RegisterHeight)
	gotPayload, err := db.GetPayload(txId, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
}

func TestCommitTimestamp(t *testing.T) {
	db := newTestDB(t)

	// Fresh database has no commit timestamp
	ts, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	// A read-write commit stamps both stores identically
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		_, err := db.SetOwner(bytes.Repeat([]byte{0x04}, 32), txn)
		return err
	})
	require.NoError(t, err)
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Greater(t, metadataTs, int64(0))
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, metadataTs, blobTs)
}

func TestCommitTimestampMismatch(t *testing.T) {
	cfg := &database.Config{
		DataDir:       t.TempDir(),
		BlobCacheSize: 1 << 20,
	}
	db, err := database.New(cfg)
	require.NoError(t, err)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		_, err := db.SetOwner(bytes.Repeat([]byte{0x05}, 32), txn)
		return err
	})
	require.NoError(t, err)
	baseTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)

	// Advance the metadata timestamp on its own to fake a torn commit
	txn := db.MetadataTransaction(true)
	require.NoError(
		t,
		db.Metadata().SetCommitTimestamp(baseTs+5, txn.Metadata()),
	)
	require.NoError(t, txn.Commit())
	require.NoError(t, db.Close())

	// Reopening must report the mismatch but still return a handle for
	// recovery
	db2, err := database.New(cfg)
	require.Error(t, err)
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, baseTs+5, tsErr.MetadataTimestamp)
	assert.Equal(t, baseTs, tsErr.BlobTimestamp)
	require.NotNil(t, db2)
	require.NoError(t, db2.Close())
}

func TestPayloadIterator(t *testing.T) {
	db := newTestDB(t)

	payloads := map[string][]byte{}
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		for i := 0; i < 5; i++ {
			txId := bytes.Repeat([]byte{byte(i + 1)}, 32)
			payload := fmt.Appendf(nil, "payload-%d", i)
			if err := db.SetPayload(txId, payload, txn); err != nil {
				return err
			}
			payloads[string(txId)] = payload
		}
		return nil
	})
	require.NoError(t, err)

	iter := db.Payloads()
	defer iter.Close()
	seen := 0
	for {
		res, err := iter.Next()
		require.NoError(t, err)
		if res == nil {
			break
		}
		expected, ok := payloads[string(res.TxId)]
		require.True(t, ok, "unexpected tx id %x", res.TxId)
		assert.Equal(t, expected, res.Payload)
		seen++
	}
	assert.Equal(t, len(payloads), seen)

	count, err := db.CountPayloads()
	require.NoError(t, err)
	assert.Equal(t, int64(len(payloads)), count)
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)

	// Missing settings come back as nil without error
	settings, err := db.GetSettings(nil)
	require.NoError(t, err)
	assert.Nil(t, settings)

	topHash := bytes.Repeat([]byte{0x06}, 32)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.SetSettings(100, topHash, 1, txn)
	})
	require.NoError(t, err)
	settings, err = db.GetSettings(nil)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, uint64(100), settings.TopHeight)
	assert.Equal(t, topHash, settings.TopHash)
	assert.Equal(t, uint64(1), settings.Version)

	// Settings are a singleton row, so a second write overwrites
	newHash := bytes.Repeat([]byte{0x07}, 32)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.SetSettings(101, newHash, 1, txn)
	})
	require.NoError(t, err)
	settings, err = db.GetSettings(nil)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, uint64(101), settings.TopHeight)
	assert.Equal(t, newHash, settings.TopHash)
}
