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
	"testing"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/types"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/names"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetachReorgReversibility(t *testing.T) {
	lg, db := newTestLedgerWithDB(t)
	oldOwner := newTestOwner(t)
	newOwner := newTestOwner(t)
	regTxId := testTxId("reorg-1")
	_, err := lg.IngestBlock(
		testPoint(10),
		[]ledger.BlockTx{
			{
				TxID:         regTxId,
				Registration: freshRegistration(t, "alice", oldOwner, chatPlaintext(1)),
			},
		},
	)
	require.NoError(t, err)
	updateTxId := testTxId("reorg-2")
	_, err = lg.IngestBlock(
		testPoint(20),
		[]ledger.BlockTx{
			{
				TxID: updateTxId,
				Registration: updateRegistration(
					t, "alice", newOwner, chatPlaintext(2), regTxId, oldOwner,
				),
			},
		},
	)
	require.NoError(t, err)

	// Roll the blocks at height 15 and above away again
	newTop := testPoint(14)
	result, err := lg.Detach(15, newTop.Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MappingsRemoved)
	assert.Equal(t, int64(1), result.OwnersPruned)
	assert.Equal(t, uint64(14), result.NewTopHeight)

	// The older record is the head again
	record, err := lg.Lookup(names.Chat, names.NameToHash("alice"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, regTxId, record.TxID)
	assert.True(t, record.PrevTxID.IsZero())
	assert.Equal(t, []byte(oldOwner.pub), record.Owner)

	// The new owner had no other record, so its row was pruned; the old
	// owner's remains
	pruned, err := lg.OwnerByKey(newOwner.pub)
	require.NoError(t, err)
	assert.Nil(t, pruned)
	kept, err := lg.OwnerByKey(oldOwner.pub)
	require.NoError(t, err)
	require.NotNil(t, kept)

	// The detached record's archived payload is gone, the survivor's is
	// not
	_, err = db.GetPayload(updateTxId.Bytes(), nil)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	_, err = db.GetPayload(regTxId.Bytes(), nil)
	require.NoError(t, err)

	settings, err := lg.Settings()
	require.NoError(t, err)
	assert.Equal(t, uint64(14), settings.TopHeight)
	assert.Equal(t, newTop.Hash, settings.TopHash)

	// Ingestion resumes forward from the rewound checkpoint
	_, err = lg.IngestBlock(
		testPoint(15),
		[]ledger.BlockTx{
			{
				TxID:         testTxId("reorg-3"),
				Registration: freshRegistration(t, "carol", newOwner, chatPlaintext(3)),
			},
		},
	)
	require.NoError(t, err)
}

func TestDetachSharedOwner(t *testing.T) {
	lg, db := newTestLedgerWithDB(t)
	owner := newTestOwner(t)
	_, err := lg.IngestBlock(
		testPoint(10),
		[]ledger.BlockTx{
			{
				TxID:         testTxId("shared-1"),
				Registration: freshRegistration(t, "alice", owner, chatPlaintext(1)),
			},
		},
	)
	require.NoError(t, err)
	_, err = lg.IngestBlock(
		testPoint(20),
		[]ledger.BlockTx{
			{
				TxID:         testTxId("shared-2"),
				Registration: freshRegistration(t, "bob", owner, chatPlaintext(2)),
			},
		},
	)
	require.NoError(t, err)

	// Two names, one owner row
	mappings, err := database.CountMappings(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mappings)
	owners, err := database.CountOwners(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), owners)

	// Detaching one of the names keeps the shared owner row
	result, err := lg.Detach(15, testPoint(14).Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MappingsRemoved)
	assert.Equal(t, int64(0), result.OwnersPruned)

	record, err := lg.Lookup(names.Chat, names.NameToHash("bob"))
	require.NoError(t, err)
	assert.Nil(t, record)
	record, err = lg.Lookup(names.Chat, names.NameToHash("alice"))
	require.NoError(t, err)
	require.NotNil(t, record)
	kept, err := lg.OwnerByKey(owner.pub)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestDetachBounds(t *testing.T) {
	lg := newTestLedger(t)
	owner := newTestOwner(t)
	_, err := lg.IngestBlock(
		testPoint(5),
		[]ledger.BlockTx{
			{
				TxID:         testTxId("bounds-1"),
				Registration: freshRegistration(t, "alice", owner, chatPlaintext(1)),
			},
		},
	)
	require.NoError(t, err)

	_, err = lg.Detach(6, testPoint(5).Hash)
	require.ErrorIs(t, err, ledger.ErrDetachBeyondTip)
	_, err = lg.Detach(0, nil)
	require.Error(t, err)

	// Detaching at the checkpoint itself removes the top block
	result, err := lg.Detach(5, testPoint(4).Hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MappingsRemoved)
	height, err := lg.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), height)
}
