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

package sqlite_test

import (
	"bytes"
	"testing"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/database/plugin/metadata/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMappingStore(t *testing.T) *sqlite.MetadataStoreSqlite {
	t.Helper()
	db, err := database.New(&database.Config{
		BlobCacheSize: 1 << 20,
		Logger:        nil,
		PromRegistry:  nil,
		DataDir:       t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db.Metadata().(*sqlite.MetadataStoreSqlite)
}

func testMapping(
	mappingType uint16,
	nameHash []byte,
	ownerKey []byte,
	ownerId uint,
	txIdByte byte,
	prevTxId []byte,
	height uint64,
) *models.Mapping {
	if prevTxId == nil {
		prevTxId = make([]byte, 32)
	}
	return &models.Mapping{
		Type:           mappingType,
		NameHash:       nameHash,
		EncryptedValue: []byte("encrypted value"),
		OwnerKey:       ownerKey,
		OwnerID:        ownerId,
		TxId:           bytes.Repeat([]byte{txIdByte}, 32),
		PrevTxId:       prevTxId,
		RegisterHeight: height,
	}
}

func TestGetMappingHead(t *testing.T) {
	metadataStore := setupMappingStore(t)

	nameHash := bytes.Repeat([]byte{0x01}, 32)
	ownerKey := bytes.Repeat([]byte{0x02}, 32)
	owner, err := metadataStore.SetOwner(ownerKey, nil)
	require.NoError(t, err)

	// Unknown name has no head
	head, err := metadataStore.GetMappingHead(0, nameHash, nil)
	require.NoError(t, err)
	assert.Nil(t, head)

	// Register at height 5, update at height 10
	first := testMapping(0, nameHash, ownerKey, owner.ID, 0x10, nil, 5)
	require.NoError(t, metadataStore.SetMapping(first, nil))
	second := testMapping(
		0, nameHash, ownerKey, owner.ID, 0x11, first.TxId, 10,
	)
	require.NoError(t, metadataStore.SetMapping(second, nil))

	head, err = metadataStore.GetMappingHead(0, nameHash, nil)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, second.TxId, head.TxId)
	assert.Equal(t, uint64(10), head.RegisterHeight)

	// A second update landing at the same height wins by insertion order
	third := testMapping(
		0, nameHash, ownerKey, owner.ID, 0x12, second.TxId, 10,
	)
	require.NoError(t, metadataStore.SetMapping(third, nil))
	head, err = metadataStore.GetMappingHead(0, nameHash, nil)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, third.TxId, head.TxId)

	// Records for other types don't leak into the head
	head, err = metadataStore.GetMappingHead(1, nameHash, nil)
	require.NoError(t, err)
	assert.Nil(t, head)
}

func TestGetMappings(t *testing.T) {
	metadataStore := setupMappingStore(t)

	nameHash := bytes.Repeat([]byte{0x01}, 32)
	otherHash := bytes.Repeat([]byte{0x02}, 32)
	ownerKey := bytes.Repeat([]byte{0x03}, 32)
	owner, err := metadataStore.SetOwner(ownerKey, nil)
	require.NoError(t, err)

	require.NoError(t, metadataStore.SetMapping(
		testMapping(0, nameHash, ownerKey, owner.ID, 0x10, nil, 5), nil,
	))
	require.NoError(t, metadataStore.SetMapping(
		testMapping(1, nameHash, ownerKey, owner.ID, 0x11, nil, 7), nil,
	))
	require.NoError(t, metadataStore.SetMapping(
		testMapping(0, otherHash, ownerKey, owner.ID, 0x12, nil, 9), nil,
	))

	// Both types for the name, newest first
	mappings, err := metadataStore.GetMappings(
		[]uint16{0, 1}, nameHash, nil,
	)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, uint64(7), mappings[0].RegisterHeight)
	assert.Equal(t, uint64(5), mappings[1].RegisterHeight)

	// Single type filter
	mappings, err = metadataStore.GetMappings([]uint16{1}, nameHash, nil)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, uint16(1), mappings[0].Type)
}

func TestGetMappingsByOwnerKeys(t *testing.T) {
	metadataStore := setupMappingStore(t)

	ownerKeyA := bytes.Repeat([]byte{0x0a}, 32)
	ownerKeyB := bytes.Repeat([]byte{0x0b}, 32)
	ownerA, err := metadataStore.SetOwner(ownerKeyA, nil)
	require.NoError(t, err)
	ownerB, err := metadataStore.SetOwner(ownerKeyB, nil)
	require.NoError(t, err)

	require.NoError(t, metadataStore.SetMapping(
		testMapping(
			0, bytes.Repeat([]byte{0x01}, 32),
			ownerKeyA, ownerA.ID, 0x10, nil, 1,
		), nil,
	))
	require.NoError(t, metadataStore.SetMapping(
		testMapping(
			0, bytes.Repeat([]byte{0x02}, 32),
			ownerKeyA, ownerA.ID, 0x11, nil, 2,
		), nil,
	))
	require.NoError(t, metadataStore.SetMapping(
		testMapping(
			0, bytes.Repeat([]byte{0x03}, 32),
			ownerKeyB, ownerB.ID, 0x12, nil, 3,
		), nil,
	))

	mappings, err := metadataStore.GetMappingsByOwnerKeys(
		[][]byte{ownerKeyA}, nil,
	)
	require.NoError(t, err)
	assert.Len(t, mappings, 2)

	mappings, err = metadataStore.GetMappingsByOwnerKeys(
		[][]byte{ownerKeyA, ownerKeyB}, nil,
	)
	require.NoError(t, err)
	assert.Len(t, mappings, 3)

	mappings, err = metadataStore.GetMappingsByOwnerKeys(
		[][]byte{bytes.Repeat([]byte{0x0c}, 32)}, nil,
	)
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestMappingsFromHeight(t *testing.T) {
	metadataStore := setupMappingStore(t)

	ownerKey := bytes.Repeat([]byte{0x0a}, 32)
	owner, err := metadataStore.SetOwner(ownerKey, nil)
	require.NoError(t, err)

	heights := []uint64{5, 10, 15}
	for i, height := range heights {
		require.NoError(t, metadataStore.SetMapping(
			testMapping(
				0, bytes.Repeat([]byte{byte(i + 1)}, 32),
				ownerKey, owner.ID, byte(0x10+i), nil, height,
			), nil,
		))
	}

	// The lower bound is inclusive
	mappings, err := metadataStore.GetMappingsFromHeight(10, nil)
	require.NoError(t, err)
	assert.Len(t, mappings, 2)

	deleted, err := metadataStore.DeleteMappingsFromHeight(10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := metadataStore.CountMappings(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Only the record below the cutoff survives
	mappings, err = metadataStore.GetMappingsFromHeight(0, nil)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, uint64(5), mappings[0].RegisterHeight)
}

func TestGetMappingByTxId(t *testing.T) {
	metadataStore := setupMappingStore(t)

	ownerKey := bytes.Repeat([]byte{0x0a}, 32)
	owner, err := metadataStore.SetOwner(ownerKey, nil)
	require.NoError(t, err)

	mapping := testMapping(
		0, bytes.Repeat([]byte{0x01}, 32), ownerKey, owner.ID, 0x10, nil, 5,
	)
	require.NoError(t, metadataStore.SetMapping(mapping, nil))

	got, err := metadataStore.GetMappingByTxId(mapping.TxId, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, mapping.NameHash, got.NameHash)

	got, err = metadataStore.GetMappingByTxId(
		bytes.Repeat([]byte{0xff}, 32), nil,
	)
	require.NoError(t, err)
	assert.Nil(t, got)
}
