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

package names

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptionOverhead is the fixed size added to a plaintext value by
// encryption, the authentication tag
const EncryptionOverhead = secretbox.Overhead

// ErrDecryptFailed is returned when an encrypted value fails
// authentication, either because it was altered or because the wrong
// name was supplied
var ErrDecryptFailed = errors.New("value decryption failed")

// Values are sealed with a key derived only from the folded name and a
// fixed nonce. Independent nodes must produce byte-identical ciphertext
// for the same registration, so no per-message randomness is involved.
// The scheme is wire compatible with the deployed network and must not
// change.
var valueNonce [24]byte

func valueEncryptionKey(name string) [32]byte {
	return blake2b.Sum256([]byte(foldName(name)))
}

// EncryptValue seals a plaintext mapping value under a key derived from
// the name. The result is deterministic for a given name and value
func EncryptValue(name string, value MappingValue) (MappingValue, error) {
	if name == "" {
		return MappingValue{}, errors.New("name is empty")
	}
	if value.Len() == 0 {
		return MappingValue{}, errors.New("value is empty")
	}
	if value.Len()+EncryptionOverhead > ValueBufferSize {
		return MappingValue{}, fmt.Errorf(
			"encrypted value would exceed the %d byte limit",
			ValueBufferSize,
		)
	}
	key := valueEncryptionKey(name)
	sealed := secretbox.Seal(nil, value.Bytes(), &valueNonce, &key)
	return NewMappingValue(sealed)
}

// DecryptValue opens an encrypted mapping value using the name it was
// sealed under. Authentication failure, from tampering or a wrong name,
// returns ErrDecryptFailed rather than garbage plaintext
func DecryptValue(name string, encrypted MappingValue) (MappingValue, error) {
	if name == "" {
		return MappingValue{}, errors.New("name is empty")
	}
	if encrypted.Len() <= EncryptionOverhead {
		return MappingValue{}, fmt.Errorf(
			"encrypted value is too short (%d bytes)",
			encrypted.Len(),
		)
	}
	key := valueEncryptionKey(name)
	opened, ok := secretbox.Open(nil, encrypted.Bytes(), &valueNonce, &key)
	if !ok {
		return MappingValue{}, ErrDecryptFailed
	}
	return NewMappingValue(opened)
}
