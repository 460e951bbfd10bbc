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

// GetSettings returns the ledger settings, or nil when the database has
// never been written to
func GetSettings(db *Database) (*models.Settings, error) {
	return db.GetSettings(nil)
}

// GetSettings returns the ledger settings, or nil when the database has
// never been written to
func (d *Database) GetSettings(txn *Txn) (*models.Settings, error) {
	if txn == nil {
		return d.metadata.GetSettings(nil)
	}
	return d.metadata.GetSettings(txn.Metadata())
}

// SetSettings updates the ledger settings
func SetSettings(
	db *Database,
	topHeight uint64,
	topHash []byte,
	version uint64,
) error {
	return db.SetSettings(topHeight, topHash, version, nil)
}

// SetSettings updates the ledger settings
func (d *Database) SetSettings(
	topHeight uint64,
	topHash []byte,
	version uint64,
	txn *Txn,
) error {
	if txn == nil {
		return d.metadata.SetSettings(topHeight, topHash, version, nil)
	}
	return d.metadata.SetSettings(topHeight, topHash, version, txn.Metadata())
}
