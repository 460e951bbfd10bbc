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

// ErrNotFound is returned when a name has no record at all
var ErrNotFound = errors.New("name not registered")

// ErrRecordExpired is returned when a name's record exists but has lapsed
var ErrRecordExpired = errors.New("record expired")

// Resolve looks up the given name and decrypts its value. This requires
// the plaintext name, since record values are encrypted under a key
// derived from it; parties that only know the name hash can fetch the
// encrypted record with Lookup but cannot read the value. The record must
// be active at the given height.
func (l *Ledger) Resolve(
	mappingType names.MappingType,
	name string,
	height uint64,
) (names.MappingValue, error) {
	l.RLock()
	defer l.RUnlock()

	record, err := l.lookup(mappingType, names.NameToHash(name))
	if err != nil {
		return names.MappingValue{}, err
	}
	if record == nil {
		return names.MappingValue{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !record.Active(l.config.Network, height) {
		return names.MappingValue{}, fmt.Errorf(
			"%w: %q lapsed, registered at %d",
			ErrRecordExpired,
			name,
			record.RegisterHeight,
		)
	}
	encrypted, err := names.NewMappingValue(record.EncryptedValue)
	if err != nil {
		return names.MappingValue{}, fmt.Errorf("invalid stored value: %w", err)
	}
	return names.DecryptValue(name, encrypted)
}
