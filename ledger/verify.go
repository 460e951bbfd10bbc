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
	"bytes"
	"errors"
	"fmt"

	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/names"
)

// ErrChainCorrupt is returned when a name's stored history fails
// re-verification
var ErrChainCorrupt = errors.New("registration chain corrupt")

// VerifyChain walks a name's history from the current record back to its
// original registration, re-verifying each link from the archived
// payloads. Every mapping row must match its payload, every update must
// carry a valid signature under the owner key of the record it replaced,
// and the chain must proceed strictly backwards. Returns the number of
// records in the chain, zero when the name has no records.
func (l *Ledger) VerifyChain(
	mappingType names.MappingType,
	nameHash names.Hash,
) (int, error) {
	l.RLock()
	defer l.RUnlock()

	current, err := l.db.GetMappingHead(
		uint16(mappingType),
		nameHash.Bytes(),
		nil,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to load record: %w", err)
	}
	count := 0
	for current != nil {
		reg, err := l.verifyRecordPayload(current)
		if err != nil {
			return count, err
		}
		count++
		if !reg.IsUpdate() {
			return count, nil
		}
		prev, err := l.db.GetMappingByTxId(current.PrevTxId, nil)
		if err != nil {
			return count, fmt.Errorf("failed to load previous record: %w", err)
		}
		if prev == nil {
			return count, fmt.Errorf(
				"%w: record %x references missing record %x",
				ErrChainCorrupt,
				current.TxId,
				current.PrevTxId,
			)
		}
		// Records must chain strictly backwards. Updates within a single
		// block share a register height, so break ties on insertion order.
		if prev.RegisterHeight > current.RegisterHeight ||
			(prev.RegisterHeight == current.RegisterHeight && prev.ID >= current.ID) {
			return count, fmt.Errorf(
				"%w: record %x does not precede %x",
				ErrChainCorrupt,
				prev.TxId,
				current.TxId,
			)
		}
		sigHash := names.SignatureHash(reg.Value, reg.PrevTxID)
		if err := names.VerifySignature(prev.OwnerKey, sigHash, reg.Signature); err != nil {
			return count, fmt.Errorf(
				"%w: record %x signature: %v",
				ErrChainCorrupt,
				current.TxId,
				err,
			)
		}
		current = prev
	}
	return count, nil
}

// verifyRecordPayload loads a record's archived payload and checks that
// the mapping row still matches it
func (l *Ledger) verifyRecordPayload(
	mapping *models.Mapping,
) (*names.Registration, error) {
	payload, err := l.db.GetPayload(mapping.TxId, nil)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: payload for %x: %v",
			ErrChainCorrupt,
			mapping.TxId,
			err,
		)
	}
	var reg names.Registration
	if err := reg.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf(
			"%w: payload for %x: %v",
			ErrChainCorrupt,
			mapping.TxId,
			err,
		)
	}
	if uint16(reg.Type) != mapping.Type {
		return nil, fmt.Errorf(
			"%w: record %x type %d, payload %d",
			ErrChainCorrupt,
			mapping.TxId,
			mapping.Type,
			uint16(reg.Type),
		)
	}
	if !bytes.Equal(reg.NameHash.Bytes(), mapping.NameHash) {
		return nil, fmt.Errorf(
			"%w: record %x name hash mismatch",
			ErrChainCorrupt,
			mapping.TxId,
		)
	}
	if !bytes.Equal(reg.Value, mapping.EncryptedValue) {
		return nil, fmt.Errorf(
			"%w: record %x value mismatch",
			ErrChainCorrupt,
			mapping.TxId,
		)
	}
	if !bytes.Equal(reg.Owner, mapping.OwnerKey) {
		return nil, fmt.Errorf(
			"%w: record %x owner mismatch",
			ErrChainCorrupt,
			mapping.TxId,
		)
	}
	if !bytes.Equal(reg.PrevTxID.Bytes(), mapping.PrevTxId) {
		return nil, fmt.Errorf(
			"%w: record %x chain reference mismatch",
			ErrChainCorrupt,
			mapping.TxId,
		)
	}
	return &reg, nil
}
