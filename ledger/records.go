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

package ledger

import (
	"fmt"

	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/names"
	"github.com/blinklabs-io/fennec/network"
)

// Point identifies a block by height and hash
type Point struct {
	Hash   []byte
	Height uint64
}

func (p Point) String() string {
	return fmt.Sprintf("%d.%x", p.Height, p.Hash)
}

// MappingRecord is a single record in a name's registration chain,
// converted from the storage model for callers
type MappingRecord struct {
	Type           names.MappingType
	NameHash       names.Hash
	EncryptedValue []byte
	Owner          []byte
	TxID           names.Hash
	PrevTxID       names.Hash
	RegisterHeight uint64
}

// Active reports whether the record is still active at the given height on
// the given network
func (r MappingRecord) Active(net network.Network, height uint64) bool {
	return names.IsActive(net, r.Type, r.RegisterHeight, height)
}

// IsUpdate reports whether the record chains onto a previous record
func (r MappingRecord) IsUpdate() bool {
	return !r.PrevTxID.IsZero()
}

func mappingRecordFromModel(m *models.Mapping) (MappingRecord, error) {
	nameHash, err := names.HashFromBytes(m.NameHash)
	if err != nil {
		return MappingRecord{}, fmt.Errorf("invalid stored name hash: %w", err)
	}
	txId, err := names.HashFromBytes(m.TxId)
	if err != nil {
		return MappingRecord{}, fmt.Errorf("invalid stored tx id: %w", err)
	}
	prevTxId, err := names.HashFromBytes(m.PrevTxId)
	if err != nil {
		return MappingRecord{}, fmt.Errorf("invalid stored prev tx id: %w", err)
	}
	return MappingRecord{
		Type:           names.MappingType(m.Type),
		NameHash:       nameHash,
		EncryptedValue: m.EncryptedValue,
		Owner:          m.OwnerKey,
		TxID:           txId,
		PrevTxID:       prevTxId,
		RegisterHeight: m.RegisterHeight,
	}, nil
}

func mappingRecordsFromModels(ms []models.Mapping) ([]MappingRecord, error) {
	records := make([]MappingRecord, 0, len(ms))
	for i := range ms {
		record, err := mappingRecordFromModel(&ms[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// OwnerRecord is an owner row converted for callers
type OwnerRecord struct {
	PublicKey []byte
	ID        uint
}

func ownerRecordFromModel(o *models.Owner) OwnerRecord {
	return OwnerRecord{
		PublicKey: o.PublicKey,
		ID:        o.ID,
	}
}

// SettingsRecord is the persisted checkpoint
type SettingsRecord struct {
	TopHash   []byte
	TopHeight uint64
	Version   uint64
}
