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

package ledger_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/types"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/names"
	"github.com/blinklabs-io/fennec/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabaseDir(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(
		&database.Config{
			DataDir:        dataDir,
			BlobPlugin:     "badger",
			MetadataPlugin: "sqlite",
			BlobCacheSize:  1 << 20,
		},
	)
	require.NoError(t, err)
	return db
}

func newTestLedgerWithDB(
	t *testing.T,
) (*ledger.Ledger, *database.Database) {
	t.Helper()
	db := newTestDatabaseDir(t, t.TempDir())
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database: db,
			Network:  network.Devnet,
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { lg.Close() })
	return lg, db
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	lg, _ := newTestLedgerWithDB(t)
	return lg
}

type testOwner struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestOwner(t *testing.T) testOwner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testOwner{pub: pub, priv: priv}
}

func (o testOwner) signUpdate(value []byte, prevTxId names.Hash) []byte {
	sigHash := names.SignatureHash(value, prevTxId)
	return ed25519.Sign(o.priv, sigHash.Bytes())
}

// chatPlaintext builds a well-formed chat value: the key-type tag byte
// followed by 32 bytes of key material
func chatPlaintext(seed byte) []byte {
	plain := bytes.Repeat([]byte{seed}, names.ChatValueBinaryLength)
	plain[0] = 0x05
	return plain
}

func encryptedValue(t *testing.T, name string, plain []byte) []byte {
	t.Helper()
	value, err := names.NewMappingValue(plain)
	require.NoError(t, err)
	encrypted, err := names.EncryptValue(name, value)
	require.NoError(t, err)
	return encrypted.Bytes()
}

func testTxId(label string) names.Hash {
	return names.NameToHash("tx-" + label)
}

func testPoint(height uint64) ledger.Point {
	return ledger.Point{
		Height: height,
		Hash:   names.NameToHash(fmt.Sprintf("block-%d", height)).Bytes(),
	}
}

func freshRegistration(
	t *testing.T,
	name string,
	owner testOwner,
	plain []byte,
) *names.Registration {
	t.Helper()
	return &names.Registration{
		Type:     names.Chat,
		NameHash: names.NameToHash(name),
		Value:    encryptedValue(t, name, plain),
		Owner:    owner.pub,
	}
}

func updateRegistration(
	t *testing.T,
	name string,
	newOwner testOwner,
	plain []byte,
	prevTxId names.Hash,
	signer testOwner,
) *names.Registration {
	t.Helper()
	value := encryptedValue(t, name, plain)
	return &names.Registration{
		Type:      names.Chat,
		NameHash:  names.NameToHash(name),
		Value:     value,
		Owner:     newOwner.pub,
		PrevTxID:  prevTxId,
		Signature: signer.signUpdate(value, prevTxId),
	}
}

func TestNewLedgerFresh(t *testing.T) {
	db := newTestDatabaseDir(t, t.TempDir())
	point := testPoint(25)
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database:  db,
			Network:   network.Devnet,
			TopHeight: point.Height,
			TopHash:   point.Hash,
		},
	)
	require.NoError(t, err)
	defer lg.Close()
	assert.Equal(t, network.Devnet, lg.Network())
	settings, err := lg.Settings()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), settings.TopHeight)
	assert.Equal(t, point.Hash, settings.TopHash)
	assert.Equal(t, uint64(1), settings.Version)
	height, err := lg.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), height)
}

func TestNewLedgerCheckpointMismatch(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabaseDir(t, dataDir)
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database: db,
			Network:  network.Devnet,
		},
	)
	require.NoError(t, err)
	owner := newTestOwner(t)
	point := testPoint(5)
	_, err = lg.IngestBlock(
		point,
		[]ledger.BlockTx{
			{
				TxID:         testTxId("mismatch-1"),
				Registration: freshRegistration(t, "alice", owner, chatPlaintext(1)),
			},
		},
	)
	require.NoError(t, err)
	require.NoError(t, lg.Close())

	// Reopening at the wrong position must refuse to initialize
	db2 := newTestDatabaseDir(t, dataDir)
	_, err = ledger.NewLedger(
		ledger.LedgerConfig{
			Database: db2,
			Network:  network.Devnet,
		},
	)
	require.ErrorIs(t, err, ledger.ErrCheckpointMismatch)
	_, err = ledger.NewLedger(
		ledger.LedgerConfig{
			Database:  db2,
			Network:   network.Devnet,
			TopHeight: point.Height,
			TopHash:   testPoint(6).Hash,
		},
	)
	require.ErrorIs(t, err, ledger.ErrCheckpointMismatch)

	// The persisted position reopens cleanly
	lg2, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database:  db2,
			Network:   network.Devnet,
			TopHeight: point.Height,
			TopHash:   point.Hash,
		},
	)
	require.NoError(t, err)
	defer lg2.Close()
	record, err := lg2.Lookup(names.Chat, names.NameToHash("alice"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, testTxId("mismatch-1"), record.TxID)
}

func TestNewLedgerSchemaVersion(t *testing.T) {
	db := newTestDatabaseDir(t, t.TempDir())
	t.Cleanup(func() { db.Close() })
	point := testPoint(10)
	require.NoError(t, database.SetSettings(db, point.Height, point.Hash, 7))
	_, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database:  db,
			Network:   network.Devnet,
			TopHeight: point.Height,
			TopHash:   point.Hash,
		},
	)
	require.ErrorIs(t, err, ledger.ErrSchemaVersion)
}

func TestRecoverCommitTimestampConflict(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabaseDir(t, dataDir)
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database: db,
			Network:  network.Devnet,
		},
	)
	require.NoError(t, err)
	owner := newTestOwner(t)
	point := testPoint(1)
	keptTxId := testTxId("recover-kept")
	_, err = lg.IngestBlock(
		point,
		[]ledger.BlockTx{
			{
				TxID:         keptTxId,
				Registration: freshRegistration(t, "alice", owner, chatPlaintext(1)),
			},
		},
	)
	require.NoError(t, err)

	// Fake a commit torn between the stores: a payload with no mapping
	// row, and store timestamps that disagree
	orphanTxId := testTxId("recover-orphan")
	require.NoError(t, db.SetPayload(orphanTxId.Bytes(), []byte("orphan"), nil))
	baseTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	txn := db.MetadataTransaction(true)
	require.NoError(
		t,
		db.Metadata().SetCommitTimestamp(baseTs+5, txn.Metadata()),
	)
	require.NoError(t, txn.Commit())
	require.NoError(t, db.Close())

	// Reopen: the database reports the conflict but stays usable
	db2, err := database.New(
		&database.Config{
			DataDir:        dataDir,
			BlobPlugin:     "badger",
			MetadataPlugin: "sqlite",
			BlobCacheSize:  1 << 20,
		},
	)
	require.Error(t, err)
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	require.NotNil(t, db2)

	lg2, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Database:  db2,
			Network:   network.Devnet,
			TopHeight: point.Height,
			TopHash:   point.Hash,
		},
	)
	require.NoError(t, err)
	require.NoError(t, lg2.RecoverCommitTimestampConflict())

	// The orphaned payload is gone, the committed one survives
	_, err = db2.GetPayload(orphanTxId.Bytes(), nil)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	payload, err := db2.GetPayload(keptTxId.Bytes(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	require.NoError(t, lg2.Close())

	// Both stores agree again after recovery
	db3 := newTestDatabaseDir(t, dataDir)
	require.NoError(t, db3.Close())
}
