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
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// OwnerKeySize is the size in bytes of an owner public key
const OwnerKeySize = ed25519.PublicKeySize

// SignatureSize is the size in bytes of a registration signature
const SignatureSize = ed25519.SignatureSize

// registrationVersion is the registration binary format version
const registrationVersion = 1

// ErrSignatureInvalid is returned when a registration signature does
// not verify against the expected owner key
var ErrSignatureInvalid = errors.New("signature verification failed")

var errPayloadTruncated = errors.New("registration payload truncated")

// Registration is a decoded name system transaction payload. The host
// node's transaction parser produces these; the ledger never reads raw
// transaction binary itself.
//
// A zero PrevTxID claims a fresh registration. A non-zero PrevTxID
// claims an update of the chain whose current head is that transaction,
// and Signature must then cover SignatureHash(Value, PrevTxID) under
// the head record's owner key. Owner is the key that will own the new
// record, which on an update may differ from the previous owner
// (a transfer).
type Registration struct {
	Type      MappingType
	NameHash  Hash
	Value     []byte
	Owner     []byte
	PrevTxID  Hash
	Signature []byte
}

// IsUpdate returns whether the payload claims to update an existing
// chain rather than create one
func (r *Registration) IsUpdate() bool {
	return !r.PrevTxID.IsZero()
}

// SignatureHash returns the digest a registration signature must cover:
// the encrypted value followed by the transaction id of the record
// being replaced. Binding the previous txid prevents replaying an old
// update against a different point in the chain
func SignatureHash(value []byte, prevTxID Hash) Hash {
	data := make([]byte, 0, len(value)+HashSize)
	data = append(data, value...)
	data = append(data, prevTxID[:]...)
	return Hash(blake2b.Sum256(data))
}

// VerifySignature checks that sig is a valid signature over hash by the
// given owner public key
func VerifySignature(owner []byte, hash Hash, sig []byte) error {
	if len(owner) != OwnerKeySize {
		return fmt.Errorf(
			"owner public key is %d bytes, expected %d",
			len(owner),
			OwnerKeySize,
		)
	}
	if len(sig) != SignatureSize {
		return fmt.Errorf(
			"signature is %d bytes, expected %d",
			len(sig),
			SignatureSize,
		)
	}
	if !ed25519.Verify(ed25519.PublicKey(owner), hash[:], sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// MarshalBinary encodes the registration into its fixed binary layout:
// version, type, name hash, length-prefixed value, owner key, previous
// txid, length-prefixed signature
func (r *Registration) MarshalBinary() ([]byte, error) {
	if len(r.Value) > ValueBufferSize {
		return nil, fmt.Errorf(
			"value is %d bytes, exceeding the %d byte limit",
			len(r.Value),
			ValueBufferSize,
		)
	}
	if len(r.Owner) != OwnerKeySize {
		return nil, fmt.Errorf(
			"owner public key is %d bytes, expected %d",
			len(r.Owner),
			OwnerKeySize,
		)
	}
	if len(r.Signature) != 0 && len(r.Signature) != SignatureSize {
		return nil, fmt.Errorf(
			"signature is %d bytes, expected %d or empty",
			len(r.Signature),
			SignatureSize,
		)
	}
	buf := make(
		[]byte,
		0,
		3+HashSize+1+len(r.Value)+OwnerKeySize+HashSize+1+len(r.Signature),
	)
	buf = append(buf, registrationVersion)
	buf = binary.BigEndian.AppendUint16(buf, uint16(r.Type))
	buf = append(buf, r.NameHash[:]...)
	buf = append(buf, byte(len(r.Value)))
	buf = append(buf, r.Value...)
	buf = append(buf, r.Owner...)
	buf = append(buf, r.PrevTxID[:]...)
	buf = append(buf, byte(len(r.Signature)))
	buf = append(buf, r.Signature...)
	return buf, nil
}

// UnmarshalBinary decodes a registration from its fixed binary layout
func (r *Registration) UnmarshalBinary(data []byte) error {
	if len(data) < 3 {
		return errPayloadTruncated
	}
	if data[0] != registrationVersion {
		return fmt.Errorf(
			"unsupported registration payload version %d",
			data[0],
		)
	}
	r.Type = MappingType(binary.BigEndian.Uint16(data[1:3]))
	rest := data[3:]
	if len(rest) < HashSize+1 {
		return errPayloadTruncated
	}
	copy(r.NameHash[:], rest[:HashSize])
	rest = rest[HashSize:]
	valueLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < valueLen+OwnerKeySize+HashSize+1 {
		return errPayloadTruncated
	}
	r.Value = bytes.Clone(rest[:valueLen])
	rest = rest[valueLen:]
	r.Owner = bytes.Clone(rest[:OwnerKeySize])
	rest = rest[OwnerKeySize:]
	copy(r.PrevTxID[:], rest[:HashSize])
	rest = rest[HashSize:]
	sigLen := int(rest[0])
	rest = rest[1:]
	if len(rest) != sigLen {
		return fmt.Errorf(
			"registration payload signature length mismatch: %d != %d",
			len(rest),
			sigLen,
		)
	}
	r.Signature = bytes.Clone(rest)
	return nil
}
