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

package database

import (
	"github.com/blinklabs-io/fennec/database/models"
)

// SetMapping stores a mapping record
func SetMapping(db *Database, mapping *models.Mapping) error {
	return db.SetMapping(mapping, nil)
}

// SetMapping stores a mapping record
func (d *Database) SetMapping(mapping *models.Mapping, txn *Txn) error {
	if txn == nil {
		return d.metadata.SetMapping(mapping, nil)
	}
	return d.metadata.SetMapping(mapping, txn.Metadata())
}

// GetMappingHead returns the latest mapping record for the given type and
// name hash, or nil when the name has never been registered
func GetMappingHead(
	db *Database,
	mappingType uint16,
	nameHash []byte,
) (*models.Mapping, error) {
	return db.GetMappingHead(mappingType, nameHash, nil)
}

// GetMappingHead returns the latest mapping record for the given type and
// name hash, or nil when the name has never been registered
func (d *Database) GetMappingHead(
	mappingType uint16,
	nameHash []byte,
	txn *Txn,
) (*models.Mapping, error) {
	if txn == nil {
		return d.metadata.GetMappingHead(mappingType, nameHash, nil)
	}
	return d.metadata.GetMappingHead(mappingType, nameHash, txn.Metadata())
}

// GetMappings returns all mapping records for the given types and name hash
// in registration order
func GetMappings(
	db *Database,
	mappingTypes []uint16,
	nameHash []byte,
) ([]models.Mapping, error) {
	return db.GetMappings(mappingTypes, nameHash, nil)
}

// GetMappings returns all mapping records for the given types and name hash
// in registration order
func (d *Database) GetMappings(
	mappingTypes []uint16,
	nameHash []byte,
	txn *Txn,
) ([]models.Mapping, error) {
	if txn == nil {
		return d.metadata.GetMappings(mappingTypes, nameHash, nil)
	}
	return d.metadata.GetMappings(mappingTypes, nameHash, txn.Metadata())
}

// GetMappingByTxId returns the mapping record created by the given
// transaction, or nil when no such record exists
func GetMappingByTxId(db *Database, txId []byte) (*models.Mapping, error) {
	return db.GetMappingByTxId(txId, nil)
}

// GetMappingByTxId returns the mapping record created by the given
// transaction, or nil when no such record exists
func (d *Database) GetMappingByTxId(
	txId []byte,
	txn *Txn,
) (*models.Mapping, error) {
	if txn == nil {
		return d.metadata.GetMappingByTxId(txId, nil)
	}
	return d.metadata.GetMappingByTxId(txId, txn.Metadata())
}

// GetMappingsByOwnerKeys returns all mapping records owned by any of the
// given owner public keys
func GetMappingsByOwnerKeys(
	db *Database,
	ownerKeys [][]byte,
) ([]models.Mapping, error) {
	return db.GetMappingsByOwnerKeys(ownerKeys, nil)
}

// GetMappingsByOwnerKeys returns all mapping records owned by any of the
// given owner public keys
func (d *Database) GetMappingsByOwnerKeys(
	ownerKeys [][]byte,
	txn *Txn,
) ([]models.Mapping, error) {
	if txn == nil {
		return d.metadata.GetMappingsByOwnerKeys(ownerKeys, nil)
	}
	return d.metadata.GetMappingsByOwnerKeys(ownerKeys, txn.Metadata())
}

// GetMappingsFromHeight returns all mapping records registered at or above
// the given height
func GetMappingsFromHeight(
	db *Database,
	height uint64,
) ([]models.Mapping, error) {
	return db.GetMappingsFromHeight(height, nil)
}

// GetMappingsFromHeight returns all mapping records registered at or above
// the given height
func (d *Database) GetMappingsFromHeight(
	height uint64,
	txn *Txn,
) ([]models.Mapping, error) {
	if txn == nil {
		return d.metadata.GetMappingsFromHeight(height, nil)
	}
	return d.metadata.GetMappingsFromHeight(height, txn.Metadata())
}

// DeleteMappingsFromHeight removes all mapping records registered at or
// above the given height. This is used when rolling back the ledger to an
// earlier point.
func DeleteMappingsFromHeight(db *Database, height uint64) (int64, error) {
	return db.DeleteMappingsFromHeight(height, nil)
}

// DeleteMappingsFromHeight removes all mapping records registered at or
// above the given height
func (d *Database) DeleteMappingsFromHeight(
	height uint64,
	txn *Txn,
) (int64, error) {
	if txn == nil {
		return d.metadata.DeleteMappingsFromHeight(height, nil)
	}
	return d.metadata.DeleteMappingsFromHeight(height, txn.Metadata())
}

// CountMappings returns the number of mapping records
func CountMappings(db *Database) (int64, error) {
	return db.CountMappings(nil)
}

// CountMappings returns the number of mapping records
func (d *Database) CountMappings(txn *Txn) (int64, error) {
	if txn == nil {
		return d.metadata.CountMappings(nil)
	}
	return d.metadata.CountMappings(txn.Metadata())
}
