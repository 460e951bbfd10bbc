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
)

// ErrDetachBeyondTip is returned when a detach height is above the current
// checkpoint
var ErrDetachBeyondTip = errors.New("detach height beyond checkpoint")

// DetachResult reports what a detach removed
type DetachResult struct {
	MappingsRemoved int64
	OwnersPruned    int64
	NewTopHeight    uint64
}

// Detach removes every record registered at fromHeight or above, in
// response to the host chain reorganizing those blocks away. Earlier
// records for the affected names become heads again. Owners left without
// any mapping are pruned, and the checkpoint rewinds to the last surviving
// block. The ledger does not track block hashes below its checkpoint, so
// the caller supplies the hash of block fromHeight-1.
func (l *Ledger) Detach(fromHeight uint64, topHash []byte) (*DetachResult, error) {
	l.Lock()
	defer l.Unlock()

	if fromHeight == 0 {
		return nil, errors.New("cannot detach genesis")
	}
	result := &DetachResult{
		NewTopHeight: fromHeight - 1,
	}
	txn := l.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		settings, err := l.db.GetSettings(txn)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if settings == nil {
			return errors.New("ledger not initialized")
		}
		if fromHeight > settings.TopHeight {
			return fmt.Errorf(
				"%w: detach from %d, checkpoint %d",
				ErrDetachBeyondTip,
				fromHeight,
				settings.TopHeight,
			)
		}
		// Collect the doomed records first so their archived payloads can
		// be dropped alongside the mapping rows
		doomed, err := l.db.GetMappingsFromHeight(fromHeight, txn)
		if err != nil {
			return fmt.Errorf("failed to load records to remove: %w", err)
		}
		for _, mapping := range doomed {
			if err := l.db.DeletePayload(mapping.TxId, txn); err != nil {
				return fmt.Errorf("failed to remove archived payload: %w", err)
			}
		}
		removed, err := l.db.DeleteMappingsFromHeight(fromHeight, txn)
		if err != nil {
			return fmt.Errorf("failed to remove records: %w", err)
		}
		result.MappingsRemoved = removed
		pruned, err := l.db.DeleteOwnersWithoutMappings(txn)
		if err != nil {
			return fmt.Errorf("failed to prune owners: %w", err)
		}
		result.OwnersPruned = pruned
		return l.db.SetSettings(
			result.NewTopHeight,
			topHash,
			schemaVersion,
			txn,
		)
	})
	if err != nil {
		return nil, err
	}

	l.metrics.detachesTotal.Inc()
	l.metrics.mappingsDeletedTotal.Add(float64(result.MappingsRemoved))
	l.metrics.height.Set(float64(result.NewTopHeight))

	l.publishEvent(DetachEventType, DetachEvent{
		Height:          fromHeight,
		NewTopHeight:    result.NewTopHeight,
		MappingsRemoved: result.MappingsRemoved,
		OwnersPruned:    result.OwnersPruned,
	})

	l.config.Logger.Info(
		"detached ledger",
		"component", "ledger",
		"from_height", fromHeight,
		"new_top_height", result.NewTopHeight,
		"mappings_removed", result.MappingsRemoved,
		"owners_pruned", result.OwnersPruned,
	)
	return result, nil
}
