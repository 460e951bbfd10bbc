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

package models

import (
	"errors"
)

var ErrMappingNotFound = errors.New("mapping not found")

// Mapping is a single registration or update of a name within a namespace.
// Rows are append-only. The current record for a (type, name hash) pair is
// the surviving row with the highest register height, with row ID breaking
// ties between updates landing in the same block
type Mapping struct {
	NameHash       []byte `gorm:"index:idx_mapping_head,priority:2;size:32"`
	EncryptedValue []byte `gorm:"size:255"`
	OwnerKey       []byte `gorm:"index;size:32"`
	TxId           []byte `gorm:"uniqueIndex;size:32"`
	PrevTxId       []byte `gorm:"size:32"`
	ID             uint   `gorm:"primarykey"`
	OwnerID        uint   `gorm:"index"`
	RegisterHeight uint64 `gorm:"index;index:idx_mapping_head,priority:3"`
	Type           uint16 `gorm:"index:idx_mapping_head,priority:1"`
}

func (Mapping) TableName() string {
	return "mapping"
}
