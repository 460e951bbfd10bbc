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
	"encoding/hex"
	"errors"
)

var ErrOwnerNotFound = errors.New("owner not found")

// Owner is a registration owner public key. Mapping rows reference owners by
// surrogate ID so that a key shared across many names is stored once
type Owner struct {
	PublicKey []byte `gorm:"uniqueIndex;size:32"`
	ID        uint   `gorm:"primarykey"`
}

func (Owner) TableName() string {
	return "owner"
}

// String returns the hex-encoded representation of the Owner's PublicKey
func (o *Owner) String() string {
	return hex.EncodeToString(o.PublicKey)
}
