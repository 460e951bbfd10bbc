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

// SetOwner inserts an owner row for the given public key, or returns the
// existing row when the key is already known
func (d *MetadataStoreMysql) SetOwner(
	publicKey []byte,
	txn types.Txn,
) (*models.Owner, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	item := models.Owner{
		PublicKey: publicKey,
	}
	result := db.Where("public_key = ?", publicKey).FirstOrCreate(&item)
	if result.Error != nil {
		return nil, result.Error
	}
	return &item, nil
}

// GetOwner retrieves an owner row by public key
func (d *MetadataStoreMysql) GetOwner(
	publicKey []byte,
	txn types.Txn,
) (*models.Owner, error) {
	ret := models.Owner{}
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("public_key = ?", publicKey).First(&ret)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		return nil, nil // Record not found
	}
	return &ret, nil
}

// GetOwnerById retrieves an owner row by surrogate ID
func (d *MetadataStoreMysql) GetOwnerById(
	ownerId uint,
	txn types.Txn,
) (*models.Owner, error) {
	ret := models.Owner{}
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.Where("id = ?", ownerId).First(&ret)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		return nil, nil // Record not found
	}
	return &ret, nil
}

// DeleteOwnersWithoutMappings deletes owner rows that no mapping row
// references, and returns how many were deleted. Used after detaching
// blocks to drop owners whose every registration was rolled back
func (d *MetadataStoreMysql) DeleteOwnersWithoutMappings(
	txn types.Txn,
) (int64, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	result := db.
		Where("id NOT IN (SELECT owner_id FROM mapping)").
		Delete(&models.Owner{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountOwners returns the number of owner rows
func (d *MetadataStoreMysql) CountOwners(txn types.Txn) (int64, error) {
	var count int64
	db, err := d.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	result := db.Model(&models.Owner{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
