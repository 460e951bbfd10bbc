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

package postgres

import (
	"errors"

	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowId = 1

// GetSettings retrieves the checkpoint row, or nil if it has never been
// written
func (d *MetadataStorePostgres) GetSettings(
	txn types.Txn,
) (*models.Settings, error) {
	ret := models.Settings{}
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	result := db.First(&ret)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		return nil, nil // Record not found
	}
	return &ret, nil
}

// SetSettings upserts the singleton checkpoint row
func (d *MetadataStorePostgres) SetSettings(
	topHeight uint64,
	topHash []byte,
	version uint64,
	txn types.Txn,
) error {
	item := models.Settings{
		ID:        settingsRowId,
		TopHeight: topHeight,
		TopHash:   topHash,
		Version:   version,
	}
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"top_height", "top_hash", "version"},
		),
	}).Create(&item)
	if result.Error != nil {
		return result.Error
	}
	return nil
}
