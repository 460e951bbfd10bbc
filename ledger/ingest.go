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

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/database/models"
	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/names"
)

// ErrStaleBlock is returned when a block does not advance the checkpoint.
// The checkpoint only moves forward outside of an explicit detach.
var ErrStaleBlock = errors.New("block does not advance the checkpoint")

// BlockTx is a single transaction in a block being ingested. Transactions
// without a name system payload carry a nil Registration and are skipped.
type BlockTx struct {
	Registration *names.Registration
	TxID         names.Hash
}

// SoftFailure records a registration that was skipped during ingestion
// because its payload failed validation
type SoftFailure struct {
	Reason error
	TxID   names.Hash
}

// IngestResult reports what a block ingestion applied and what it skipped
type IngestResult struct {
	Rejected []SoftFailure
	Accepted int
}

// appliedRecord collects what was written so events can be published after
// the transaction commits
type appliedRecord struct {
	reg    *names.Registration
	txId   names.Hash
	update bool
}

// IngestBlock applies a block of transactions to the ledger inside one
// coordinated storage transaction. Each transaction carrying a registration
// payload is revalidated against the current chain state; payloads that
// fail validation are skipped and reported in the result, while storage
// errors abort and roll back the entire block. The final write advances the
// checkpoint to the block's height and hash.
func (l *Ledger) IngestBlock(
	point Point,
	txs []BlockTx,
) (*IngestResult, error) {
	l.Lock()
	defer l.Unlock()

	result := &IngestResult{}
	var applied []appliedRecord

	txn := l.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		settings, err := l.db.GetSettings(txn)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if settings == nil {
			return errors.New("ledger not initialized")
		}
		if point.Height <= settings.TopHeight {
			return fmt.Errorf(
				"%w: block %d, checkpoint %d",
				ErrStaleBlock,
				point.Height,
				settings.TopHeight,
			)
		}
		for _, tx := range txs {
			reg := tx.Registration
			if reg == nil {
				continue
			}
			// Revalidate the payload format, then check it against the
			// current head of its chain. Head reads within this
			// transaction see records applied earlier in the same block,
			// so a block may carry several chained updates to one name.
			if valErr := checkRegistrationFormat(reg); valErr != nil {
				l.skipRegistration(result, tx.TxID, valErr)
				continue
			}
			head, err := l.db.GetMappingHead(
				uint16(reg.Type),
				reg.NameHash.Bytes(),
				txn,
			)
			if err != nil {
				return fmt.Errorf("failed to load current record: %w", err)
			}
			if valErr := l.checkRegistrationChain(reg, point.Height, head); valErr != nil {
				l.skipRegistration(result, tx.TxID, valErr)
				continue
			}
			// Owner rows are reused by public key
			owner, err := l.db.SetOwner(reg.Owner, txn)
			if err != nil {
				return fmt.Errorf("failed to save owner: %w", err)
			}
			update := reg.IsUpdate()
			prevTxId := make([]byte, names.HashSize)
			if update {
				copy(prevTxId, head.TxId)
			}
			mapping := &models.Mapping{
				Type:           uint16(reg.Type),
				NameHash:       reg.NameHash.Bytes(),
				EncryptedValue: reg.Value,
				OwnerKey:       reg.Owner,
				OwnerID:        owner.ID,
				TxId:           tx.TxID.Bytes(),
				PrevTxId:       prevTxId,
				RegisterHeight: point.Height,
			}
			if err := l.db.SetMapping(mapping, txn); err != nil {
				return fmt.Errorf("failed to save mapping: %w", err)
			}
			// Archive the canonical payload for later chain verification
			payload, err := reg.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to encode payload: %w", err)
			}
			if err := l.db.SetPayload(tx.TxID.Bytes(), payload, txn); err != nil {
				return fmt.Errorf("failed to archive payload: %w", err)
			}
			applied = append(applied, appliedRecord{
				reg:    reg,
				txId:   tx.TxID,
				update: update,
			})
			result.Accepted++
		}
		// Advance the checkpoint as the final write of the transaction
		return l.db.SetSettings(
			point.Height,
			point.Hash,
			schemaVersion,
			txn,
		)
	})
	if err != nil {
		return nil, err
	}

	l.metrics.blocksIngestedTotal.Inc()
	l.metrics.height.Set(float64(point.Height))
	l.metrics.validationFailuresTotal.Add(float64(len(result.Rejected)))

	// Publish events only after the block has committed
	for _, a := range applied {
		evtType := RegistrationEventType
		if a.update {
			evtType = UpdateEventType
			l.metrics.updatesTotal.Inc()
		} else {
			l.metrics.registrationsTotal.Inc()
		}
		l.publishEvent(evtType, RegistrationEvent{
			Type:     a.reg.Type,
			NameHash: a.reg.NameHash,
			TxID:     a.txId,
			Owner:    a.reg.Owner,
			Height:   point.Height,
		})
	}
	l.publishEvent(BlockEventType, BlockEvent{
		Point:    point,
		TxCount:  len(txs),
		Accepted: result.Accepted,
		Rejected: len(result.Rejected),
	})

	l.config.Logger.Debug(
		"ingested block",
		"component", "ledger",
		"height", point.Height,
		"accepted", result.Accepted,
		"rejected", len(result.Rejected),
	)
	return result, nil
}

// skipRegistration records a soft validation failure without aborting the
// block
func (l *Ledger) skipRegistration(
	result *IngestResult,
	txId names.Hash,
	reason error,
) {
	result.Rejected = append(result.Rejected, SoftFailure{
		TxID:   txId,
		Reason: reason,
	})
	l.config.Logger.Warn(
		"skipping invalid registration",
		"component", "ledger",
		"tx_id", txId.String(),
		"error", reason,
	)
}

// publishEvent delivers a ledger event when an event bus is configured
func (l *Ledger) publishEvent(eventType event.EventType, data any) {
	if l.config.EventBus == nil {
		return
	}
	l.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
