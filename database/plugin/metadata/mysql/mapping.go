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

package mysql

import (
	"errors"

	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/database/types"
	"gorm.io/gorm"
)

// SetMapping inserts a mapping row
func (d *MetadataStoreMysql) SetMapping(
	mapping *models.Mapping,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Create(mapping)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// GetMappingHead retrieves the current record for a type and name hash.
// Within a single height, a later row wins, which covers multiple updates
// to the same name landing in one block
func (d *MetadataStoreMysql) GetMappingHead(
	mappingType uint16,
	nameHash []byte,
	txn types.Txn,
) (*models.Mapping, error) {
	ret := models.Mapping{}
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("type = ? AND name_hash = ?", mappingType, nameHash).
		Order("register_height DESC").
		Order("id DESC").
		First(&ret)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		return nil, nil // Record not found
	}
	return &ret, nil
}

// GetMappings retrieves every record for the given types and name hash,
// newest first
func (d *MetadataStoreMysql) GetMappings(
	mappingTypes []uint16,
	nameHash []byte,
	txn types.Txn,
) ([]models.Mapping, error) {
	var ret []models.Mapping
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("type IN ? AND name_hash = ?", mappingTypes, nameHash).
		Order("register_height DESC").
		Order("id DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetMappingByTxId retrieves the mapping row created by the given transaction
func (d *MetadataStoreMysql) GetMappingByTxId(
	txId []byte,
	txn types.Txn,
) (*models.Mapping, error) {
	ret := models.Mapping{}
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("tx_id = ?", txId).First(&ret)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		return nil, nil // Record not found
	}
	return &ret, nil
}

// GetMappingsByOwnerKeys retrieves every record owned by any of the given
// owner public keys, newest first
func (d *MetadataStoreMysql) GetMappingsByOwnerKeys(
	ownerKeys [][]byte,
	txn types.Txn,
) ([]models.Mapping, error) {
	var ret []models.Mapping
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("owner_key IN ?", ownerKeys).
		Order("register_height DESC").
		Order("id DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetMappingsFromHeight retrieves mapping rows registered at or above the
// given height
func (d *MetadataStoreMysql) GetMappingsFromHeight(
	height uint64,
	txn types.Txn,
) ([]models.Mapping, error) {
	var ret []models.Mapping
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("register_height >= ?", height).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// DeleteMappingsFromHeight deletes mapping rows registered at or above the
// given height, returning the number of rows removed
func (d *MetadataStoreMysql) DeleteMappingsFromHeight(
	height uint64,
	txn types.Txn,
) (int64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	result := db.
		Where("register_height >= ?", height).
		Delete(&models.Mapping{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountMappings returns the number of mapping rows
func (d *MetadataStoreMysql) CountMappings(txn types.Txn) (int64, error) {
	var count int64
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	result := db.Model(&models.Mapping{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
