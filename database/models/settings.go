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

// Settings is the singleton checkpoint row recording the chain position that
// the database contents reflect. It is written last within each ingestion
// transaction, so a committed checkpoint means every row at or below its
// height is present
type Settings struct {
	TopHash   []byte `gorm:"size:32"`
	ID        uint   `gorm:"primarykey"`
	TopHeight uint64
	Version   uint64
}

func (Settings) TableName() string {
	return "settings"
}
