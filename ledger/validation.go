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

// ErrNamespaceClosed is returned for registrations in a namespace that is
// not currently accepting new records
var ErrNamespaceClosed = errors.New("namespace not accepting registrations")

// ErrNameTaken is returned for a fresh registration of a name that already
// has an active record
var ErrNameTaken = errors.New("name already registered")

// ErrNoActiveRecord is returned for an update whose target chain has no
// active record. Expired names must be re-registered fresh, not updated.
var ErrNoActiveRecord = errors.New("no active record to update")

// ErrChainMismatch is returned for an update that does not reference the
// current head of its chain
var ErrChainMismatch = errors.New("update does not reference the current record")

// ValidateRegistration checks whether a registration payload could be
// applied at the given height against the current ledger state. This is the
// same validation ingestion runs, usable by callers that want to screen
// payloads (a mempool, a wallet) before they reach a block.
func (l *Ledger) ValidateRegistration(
	reg *names.Registration,
	height uint64,
) error {
	if reg == nil {
		return errors.New("nil registration")
	}
	if err := checkRegistrationFormat(reg); err != nil {
		return err
	}
	head, err := l.db.GetMappingHead(uint16(reg.Type), reg.NameHash.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("failed to load current record: %w", err)
	}
	return l.checkRegistrationChain(reg, height, head)
}

// ValidatePendingRegistration validates a payload against the state the
// next block would see. Pool-style callers use this to screen submissions
// without tracking the checkpoint height themselves.
func (l *Ledger) ValidatePendingRegistration(reg *names.Registration) error {
	l.RLock()
	defer l.RUnlock()
	settings, err := l.settings()
	if err != nil {
		return err
	}
	return l.ValidateRegistration(reg, settings.TopHeight+1)
}

// checkRegistrationFormat validates the payload in isolation: type, name
// hash, owner key, and encrypted value format. The payload may have been
// produced by a different code version, so everything is rechecked here.
func checkRegistrationFormat(reg *names.Registration) error {
	if !reg.Type.Valid() {
		return fmt.Errorf("invalid mapping type %d", uint16(reg.Type))
	}
	if !reg.Type.Allowed() {
		return fmt.Errorf("%w: %s", ErrNamespaceClosed, reg.Type)
	}
	if reg.NameHash.IsZero() {
		return errors.New("zero name hash")
	}
	if len(reg.Owner) != names.OwnerKeySize {
		return fmt.Errorf(
			"owner key is %d bytes, expected %d",
			len(reg.Owner),
			names.OwnerKeySize,
		)
	}
	return names.ValidateEncryptedValue(reg.Type, reg.Value)
}

// checkRegistrationChain validates the payload against the current head of
// its (type, name hash) chain. An active head demands a signed update that
// references it; an expired or missing head demands a fresh registration.
func (l *Ledger) checkRegistrationChain(
	reg *names.Registration,
	height uint64,
	head *models.Mapping,
) error {
	headActive := head != nil && names.IsActive(
		l.config.Network,
		names.MappingType(head.Type),
		head.RegisterHeight,
		height,
	)
	if !headActive {
		if reg.IsUpdate() {
			return fmt.Errorf("%w: %x", ErrNoActiveRecord, reg.PrevTxID.Bytes())
		}
		return nil
	}
	if !reg.IsUpdate() {
		return fmt.Errorf(
			"%w: %s record for %x",
			ErrNameTaken,
			reg.Type,
			reg.NameHash.Bytes(),
		)
	}
	if !bytes.Equal(reg.PrevTxID.Bytes(), head.TxId) {
		return fmt.Errorf(
			"%w: references %x, current is %x",
			ErrChainMismatch,
			reg.PrevTxID.Bytes(),
			head.TxId,
		)
	}
	// The update must be signed by the owner of the record it replaces.
	// The payload owner key may differ, which transfers ownership.
	sigHash := names.SignatureHash(reg.Value, reg.PrevTxID)
	return names.VerifySignature(head.OwnerKey, sigHash, reg.Signature)
}
