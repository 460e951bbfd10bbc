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
	"bytes"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/fennec/network"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ValueBufferSize is the fixed capacity of a mapping value buffer. No
// plaintext or encrypted value may exceed it
const ValueBufferSize = 255

// chatKeyTag is the key-type byte a chat public key must begin with
const chatKeyTag = 0x05

// onionAddressLength is the text length of an onion address
const onionAddressLength = 52

// base32z is the encoding used for onion address text
var base32z = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").
	WithPadding(base32.NoPadding)

// Wallet address layout: one network prefix byte, the spend public key,
// the view public key, then a checksum over everything before it
const (
	walletChecksumLength   = 4
	walletAddressRawLength = 1 + WalletValueBinaryLength + walletChecksumLength
)

// MappingValue is a bounded binary mapping value. Depending on where it
// came from it holds either the decoded plaintext form or the encrypted
// form of a namespace value
type MappingValue struct {
	buffer [ValueBufferSize]byte
	length int
}

// NewMappingValue returns a MappingValue holding a copy of data
func NewMappingValue(data []byte) (MappingValue, error) {
	var v MappingValue
	if len(data) > ValueBufferSize {
		return v, fmt.Errorf(
			"value is %d bytes, exceeding the %d byte limit",
			len(data),
			ValueBufferSize,
		)
	}
	copy(v.buffer[:], data)
	v.length = len(data)
	return v, nil
}

// Bytes returns the value contents
func (v MappingValue) Bytes() []byte {
	return v.buffer[:v.length]
}

// Len returns the value length
func (v MappingValue) Len() int {
	return v.length
}

// String returns the hex encoding of the value contents
func (v MappingValue) String() string {
	return hex.EncodeToString(v.Bytes())
}

// Equal returns whether two values hold the same contents
func (v MappingValue) Equal(other MappingValue) bool {
	return bytes.Equal(v.Bytes(), other.Bytes())
}

// ValidateValue checks a human-readable value against the namespace's
// format rules and returns its canonical binary encoding. Wallet
// addresses are network specific, so the network must be supplied
func ValidateValue(
	net network.Network,
	mappingType MappingType,
	value string,
) (MappingValue, error) {
	switch {
	case mappingType == Chat:
		return decodeChatValue(value)
	case mappingType == Wallet:
		return decodeWalletValue(net, value)
	case mappingType.IsOnion():
		return decodeOnionValue(value)
	}
	return MappingValue{}, fmt.Errorf(
		"unknown mapping type %d",
		uint16(mappingType),
	)
}

// ValidateEncryptedValue checks that an encrypted value blob has exactly
// the ciphertext length for the namespace. This is a precondition for
// decryption, not a proof of authenticity
func ValidateEncryptedValue(mappingType MappingType, blob []byte) error {
	if !mappingType.Valid() {
		return fmt.Errorf("unknown mapping type %d", uint16(mappingType))
	}
	if expected := mappingType.EncryptedValueLength(); len(blob) != expected {
		return fmt.Errorf(
			"%s encrypted value is %d bytes, expected %d",
			mappingType,
			len(blob),
			expected,
		)
	}
	return nil
}

func decodeChatValue(value string) (MappingValue, error) {
	if len(value) != 2*ChatValueBinaryLength {
		return MappingValue{}, fmt.Errorf(
			"chat value must be %d hex characters, got %d",
			2*ChatValueBinaryLength,
			len(value),
		)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return MappingValue{}, fmt.Errorf("chat value is not hex: %w", err)
	}
	if raw[0] != chatKeyTag {
		return MappingValue{}, fmt.Errorf(
			"chat public key must begin with the %02x key type",
			chatKeyTag,
		)
	}
	return NewMappingValue(raw)
}

func decodeOnionValue(value string) (MappingValue, error) {
	if len(value) != onionAddressLength {
		return MappingValue{}, fmt.Errorf(
			"onion address must be %d characters, got %d",
			onionAddressLength,
			len(value),
		)
	}
	raw, err := base32z.DecodeString(value)
	if err != nil {
		return MappingValue{}, fmt.Errorf(
			"onion address is not valid base32z: %w",
			err,
		)
	}
	if len(raw) != OnionValueBinaryLength {
		return MappingValue{}, fmt.Errorf(
			"onion address decodes to %d bytes, expected %d",
			len(raw),
			OnionValueBinaryLength,
		)
	}
	return NewMappingValue(raw)
}

func decodeWalletValue(
	net network.Network,
	value string,
) (MappingValue, error) {
	raw, err := base58.Decode(value)
	if err != nil {
		return MappingValue{}, fmt.Errorf(
			"wallet address is not valid base58: %w",
			err,
		)
	}
	if len(raw) != walletAddressRawLength {
		return MappingValue{}, fmt.Errorf(
			"wallet address decodes to %d bytes, expected %d",
			len(raw),
			walletAddressRawLength,
		)
	}
	if raw[0] != net.WalletPrefix {
		return MappingValue{}, fmt.Errorf(
			"wallet address prefix %02x does not belong to the %s network",
			raw[0],
			net,
		)
	}
	payload := raw[:len(raw)-walletChecksumLength]
	checksum := raw[len(raw)-walletChecksumLength:]
	if !bytes.Equal(checksum, walletChecksum(payload)) {
		return MappingValue{}, errors.New("wallet address checksum mismatch")
	}
	return NewMappingValue(raw[1 : 1+WalletValueBinaryLength])
}

// EncodeOnionAddress returns the text form of an onion service public
// key
func EncodeOnionAddress(key []byte) (string, error) {
	if len(key) != OnionValueBinaryLength {
		return "", fmt.Errorf(
			"onion key must be %d bytes, got %d",
			OnionValueBinaryLength,
			len(key),
		)
	}
	return base32z.EncodeToString(key), nil
}

// EncodeWalletAddress returns the text form of a wallet address on the
// given network
func EncodeWalletAddress(
	net network.Network,
	spendKey []byte,
	viewKey []byte,
) (string, error) {
	if len(spendKey) != 32 || len(viewKey) != 32 {
		return "", errors.New("wallet spend and view keys must be 32 bytes")
	}
	raw := make([]byte, 0, walletAddressRawLength)
	raw = append(raw, net.WalletPrefix)
	raw = append(raw, spendKey...)
	raw = append(raw, viewKey...)
	raw = append(raw, walletChecksum(raw)...)
	return base58.Encode(raw), nil
}

func walletChecksum(data []byte) []byte {
	digest := blake2b.Sum256(data)
	return digest[:walletChecksumLength]
}
