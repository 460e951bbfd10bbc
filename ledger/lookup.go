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
	"errors"
	"fmt"

	"github.com/blinklabs-io/fennec/names"
)

// Lookup returns the current record for the given type and name hash, or
// nil when the name has never been registered. The record is returned even
// when expired, so callers can distinguish "never registered" from
// "lapsed"; use Active or Resolve when only live records matter.
func (l *Ledger) Lookup(
	mappingType names.MappingType,
	nameHash names.Hash,
) (*MappingRecord, error) {
	l.RLock()
	defer l.RUnlock()
	return l.lookup(mappingType, nameHash)
}

// lookup is Lookup without the read lock, for use by operations that
// already hold it
func (l *Ledger) lookup(
	mappingType names.MappingType,
	nameHash names.Hash,
) (*MappingRecord, error) {
	mapping, err := l.db.GetMappingHead(
		uint16(mappingType),
		nameHash.Bytes(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if mapping == nil {
		return nil, nil
	}
	record, err := mappingRecordFromModel(mapping)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// LookupMany returns the current record for each of the given types under
// one name hash. Names collide across types only by sharing the hashed
// name, so this answers "what is registered under this name anywhere"
// in a single query.
func (l *Ledger) LookupMany(
	mappingTypes []names.MappingType,
	nameHash names.Hash,
) ([]MappingRecord, error) {
	l.RLock()
	defer l.RUnlock()
	rawTypes := make([]uint16, 0, len(mappingTypes))
	for _, t := range mappingTypes {
		rawTypes = append(rawTypes, uint16(t))
	}
	mappings, err := l.db.GetMappings(rawTypes, nameHash.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return mappingRecordsFromModels(mappings)
}

// LookupByOwner returns every record owned by the given public key
func (l *Ledger) LookupByOwner(ownerKey []byte) ([]MappingRecord, error) {
	return l.LookupByOwners([][]byte{ownerKey})
}

// LookupByOwners returns every record owned by any of the given public
// keys, newest first
func (l *Ledger) LookupByOwners(ownerKeys [][]byte) ([]MappingRecord, error) {
	l.RLock()
	defer l.RUnlock()
	mappings, err := l.db.GetMappingsByOwnerKeys(ownerKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return mappingRecordsFromModels(mappings)
}

// OwnerByKey returns the owner row for the given public key, or nil when
// the key has never owned a record
func (l *Ledger) OwnerByKey(publicKey []byte) (*OwnerRecord, error) {
	l.RLock()
	defer l.RUnlock()
	owner, err := l.db.GetOwner(publicKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, nil
	}
	record := ownerRecordFromModel(owner)
	return &record, nil
}

// OwnerByID returns the owner row with the given database ID, or nil
func (l *Ledger) OwnerByID(id uint) (*OwnerRecord, error) {
	l.RLock()
	defer l.RUnlock()
	owner, err := l.db.GetOwnerById(id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, nil
	}
	record := ownerRecordFromModel(owner)
	return &record, nil
}

// Settings returns the persisted checkpoint and schema version
func (l *Ledger) Settings() (*SettingsRecord, error) {
	l.RLock()
	defer l.RUnlock()
	return l.settings()
}

// settings is Settings without the read lock
func (l *Ledger) settings() (*SettingsRecord, error) {
	settings, err := l.db.GetSettings(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		return nil, errors.New("ledger not initialized")
	}
	return &SettingsRecord{
		TopHash:   settings.TopHash,
		TopHeight: settings.TopHeight,
		Version:   settings.Version,
	}, nil
}

// Height returns the checkpoint height. The checkpoint is read from
// storage on every call rather than cached, so it stays correct across
// recovery and detach.
func (l *Ledger) Height() (uint64, error) {
	settings, err := l.Settings()
	if err != nil {
		return 0, err
	}
	return settings.TopHeight, nil
}
