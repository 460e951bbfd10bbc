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

// SetOwner stores the given owner public key, returning the existing row
// when the key is already known
func SetOwner(db *Database, publicKey []byte) (*models.Owner, error) {
	return db.SetOwner(publicKey, nil)
}

// SetOwner stores the given owner public key, returning the existing row
// when the key is already known
func (d *Database) SetOwner(
	publicKey []byte,
	txn *Txn,
) (*models.Owner, error) {
	if txn == nil {
		return d.metadata.SetOwner(publicKey, nil)
	}
	return d.metadata.SetOwner(publicKey, txn.Metadata())
}

// GetOwner returns the owner with the given public key, or nil when no such
// owner exists
func GetOwner(db *Database, publicKey []byte) (*models.Owner, error) {
	return db.GetOwner(publicKey, nil)
}

// GetOwner returns the owner with the given public key, or nil when no such
// owner exists
func (d *Database) GetOwner(
	publicKey []byte,
	txn *Txn,
) (*models.Owner, error) {
	if txn == nil {
		return d.metadata.GetOwner(publicKey, nil)
	}
	return d.metadata.GetOwner(publicKey, txn.Metadata())
}

// GetOwnerById returns the owner with the given row ID
func GetOwnerById(db *Database, ownerId uint) (*models.Owner, error) {
	return db.GetOwnerById(ownerId, nil)
}

// GetOwnerById returns the owner with the given row ID
func (d *Database) GetOwnerById(
	ownerId uint,
	txn *Txn,
) (*models.Owner, error) {
	if txn == nil {
		return d.metadata.GetOwnerById(ownerId, nil)
	}
	return d.metadata.GetOwnerById(ownerId, txn.Metadata())
}

// DeleteOwnersWithoutMappings removes owners that no longer have any
// mappings referencing them. This is used after rolling back mappings to
// keep the owner table from accumulating orphaned rows.
func DeleteOwnersWithoutMappings(db *Database) (int64, error) {
	return db.DeleteOwnersWithoutMappings(nil)
}

// DeleteOwnersWithoutMappings removes owners that no longer have any
// mappings referencing them
func (d *Database) DeleteOwnersWithoutMappings(txn *Txn) (int64, error) {
	if txn == nil {
		return d.metadata.DeleteOwnersWithoutMappings(nil)
	}
	return d.metadata.DeleteOwnersWithoutMappings(txn.Metadata())
}

// CountOwners returns the number of distinct owners
func CountOwners(db *Database) (int64, error) {
	return db.CountOwners(nil)
}

// CountOwners returns the number of distinct owners
func (d *Database) CountOwners(txn *Txn) (int64, error) {
	if txn == nil {
		return d.metadata.CountOwners(nil)
	}
	return d.metadata.CountOwners(txn.Metadata())
}
