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

// Package names implements the namespace rules of the name system:
// per-type name and value formats, the name-keyed value cipher, the
// expiry policy, and the registration payload consumed by the ledger.
//
// Names are never stored or transmitted in plain text. A name is folded
// to lower case and hashed, and the hash is the only identifier the
// ledger ever sees. The plaintext name doubles as the secret that the
// value cipher derives its key from, so resolving a name to its value
// requires knowing the name.
package names

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MappingType identifies the namespace a name is registered in
type MappingType uint16

const (
	Chat         MappingType = 0
	Wallet       MappingType = 1
	Onion1Year   MappingType = 2
	Onion2Years  MappingType = 3
	Onion5Years  MappingType = 4
	Onion10Years MappingType = 5
)

const (
	// ChatNameMax is the maximum name length in the chat namespace
	ChatNameMax = 64
	// WalletNameMax is the maximum name length in the wallet namespace
	WalletNameMax = 96
	// OnionNameMax is the maximum name length in the onion namespaces
	OnionNameMax = 253

	// ChatValueBinaryLength is the decoded length of a chat value, a
	// key-type tag byte followed by a 32-byte public key
	ChatValueBinaryLength = 1 + 32
	// WalletValueBinaryLength is the decoded length of a wallet value,
	// the concatenated spend and view public keys
	WalletValueBinaryLength = 2 * 32
	// OnionValueBinaryLength is the decoded length of an onion value, an
	// ed25519 public key
	OnionValueBinaryLength = 32
)

func (t MappingType) String() string {
	switch t {
	case Chat:
		return "chat"
	case Wallet:
		return "wallet"
	case Onion1Year:
		return "onion_1year"
	case Onion2Years:
		return "onion_2years"
	case Onion5Years:
		return "onion_5years"
	case Onion10Years:
		return "onion_10years"
	}
	return fmt.Sprintf("unknown (%d)", uint16(t))
}

// Valid returns whether the type is a known namespace
func (t MappingType) Valid() bool {
	return t <= Onion10Years
}

// IsOnion returns whether the type is one of the onion tenures
func (t MappingType) IsOnion() bool {
	return t >= Onion1Year && t <= Onion10Years
}

// Allowed returns whether the namespace currently accepts new
// registrations. The other namespaces are fully modeled and their
// stored records remain readable, but only chat registrations are
// accepted at present
func (t MappingType) Allowed() bool {
	return t == Chat
}

// NameMax returns the maximum name length for the namespace
func (t MappingType) NameMax() int {
	switch {
	case t == Chat:
		return ChatNameMax
	case t == Wallet:
		return WalletNameMax
	case t.IsOnion():
		return OnionNameMax
	}
	return 0
}

// ValueBinaryLength returns the decoded value length for the namespace
func (t MappingType) ValueBinaryLength() int {
	switch {
	case t == Chat:
		return ChatValueBinaryLength
	case t == Wallet:
		return WalletValueBinaryLength
	case t.IsOnion():
		return OnionValueBinaryLength
	}
	return 0
}

// EncryptedValueLength returns the expected ciphertext length for the
// namespace
func (t MappingType) EncryptedValueLength() int {
	return t.ValueBinaryLength() + EncryptionOverhead
}

// AllMappingTypes returns every known namespace
func AllMappingTypes() []MappingType {
	return []MappingType{
		Chat,
		Wallet,
		Onion1Year,
		Onion2Years,
		Onion5Years,
		Onion10Years,
	}
}

// ParseMappingType maps a namespace's canonical string name to its type.
// The comparison is case-insensitive. Namespaces that are modeled but
// not currently accepting registrations do not parse
func ParseMappingType(text string) (MappingType, error) {
	name := strings.ToLower(strings.TrimSpace(text))
	for _, mappingType := range AllMappingTypes() {
		if mappingType.String() != name {
			continue
		}
		if !mappingType.Allowed() {
			return 0, fmt.Errorf(
				"mapping type %q is not currently accepted",
				name,
			)
		}
		return mappingType, nil
	}
	return 0, fmt.Errorf("unknown mapping type %q", text)
}

// HashSize is the size in bytes of a name hash or transaction id
const HashSize = 32

// Hash is a 32-byte digest used for both hashed names and transaction
// ids
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero returns whether the hash is all zeroes
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromBytes builds a Hash from a raw 32-byte slice
func HashFromBytes(data []byte) (Hash, error) {
	if len(data) != HashSize {
		return Hash{}, fmt.Errorf(
			"hash must be %d bytes, got %d",
			HashSize,
			len(data),
		)
	}
	var h Hash
	copy(h[:], data)
	return h, nil
}

// NameToHash returns the ledger lookup digest for a name. The name is
// folded to lower case before hashing, so equal names always hash equal
func NameToHash(name string) Hash {
	return Hash(blake2b.Sum256([]byte(foldName(name))))
}

func foldName(name string) string {
	return strings.ToLower(name)
}

// ValidateName checks that a name is acceptable for the namespace: not
// empty, within the per-type length bound, and free of line breaks.
// Namespace acceptance is a separate policy gate checked at
// registration time, not here
func ValidateName(mappingType MappingType, name string) error {
	if !mappingType.Valid() {
		return fmt.Errorf("unknown mapping type %d", uint16(mappingType))
	}
	if name == "" {
		return errors.New("name is empty")
	}
	if max := mappingType.NameMax(); len(name) > max {
		return fmt.Errorf(
			"%s name is %d characters, exceeding the %d character limit",
			mappingType,
			len(name),
			max,
		)
	}
	if strings.ContainsAny(name, "\r\n") {
		return errors.New("name contains line break characters")
	}
	return nil
}
