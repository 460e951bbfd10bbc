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
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/network"
	"github.com/prometheus/client_golang/prometheus"
)

// schemaVersion is persisted in the settings checkpoint and checked on
// load. A database written by a different schema cannot be opened.
const schemaVersion = 1

// ErrCheckpointMismatch is returned by NewLedger when the persisted
// checkpoint disagrees with the host's expectation. The ledger refuses to
// initialize rather than silently resynchronize.
var ErrCheckpointMismatch = errors.New("checkpoint mismatch")

// ErrSchemaVersion is returned by NewLedger when the persisted schema
// version does not match this build
var ErrSchemaVersion = errors.New("unsupported schema version")

type LedgerConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Network      network.Network
	// TopHeight and TopHash anchor a fresh database at the host's current
	// chain position. On an existing database they must match the persisted
	// checkpoint.
	TopHeight uint64
	TopHash   []byte
}

// Ledger is the name system ledger: an append-only record of name
// registrations keyed by (type, name hash), with a persisted checkpoint
// tracking the last fully ingested block. A single writer ingests blocks
// and detaches history; readers may query concurrently.
type Ledger struct {
	sync.RWMutex
	config  LedgerConfig
	db      *database.Database
	metrics ledgerMetrics
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	l := &Ledger{
		config: cfg,
		db:     cfg.Database,
	}
	// Init metrics
	l.metrics.init(cfg.PromRegistry)
	// Validate the persisted checkpoint against the host's expectation
	if err := l.initCheckpoint(); err != nil {
		return nil, err
	}
	return l, nil
}

// initCheckpoint loads the settings row, initializing a fresh database at
// the configured tip and failing hard on any disagreement with an existing
// database
func (l *Ledger) initCheckpoint() error {
	settings, err := l.db.GetSettings(nil)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		// Fresh database
		txn := l.db.Transaction(true)
		err := txn.Do(func(txn *database.Txn) error {
			return l.db.SetSettings(
				l.config.TopHeight,
				l.config.TopHash,
				schemaVersion,
				txn,
			)
		})
		if err != nil {
			return fmt.Errorf("failed to initialize checkpoint: %w", err)
		}
		l.config.Logger.Info(
			"initialized fresh ledger",
			"component", "ledger",
			"network", l.config.Network.String(),
			"top_height", l.config.TopHeight,
			"top_hash", hex.EncodeToString(l.config.TopHash),
		)
		l.metrics.height.Set(float64(l.config.TopHeight))
		return nil
	}
	if settings.Version != schemaVersion {
		return fmt.Errorf(
			"%w: database has version %d, expected %d",
			ErrSchemaVersion,
			settings.Version,
			schemaVersion,
		)
	}
	if settings.TopHeight != l.config.TopHeight ||
		!bytes.Equal(settings.TopHash, l.config.TopHash) {
		return fmt.Errorf(
			"%w: database is at %d (%s), host expects %d (%s)",
			ErrCheckpointMismatch,
			settings.TopHeight,
			hex.EncodeToString(settings.TopHash),
			l.config.TopHeight,
			hex.EncodeToString(l.config.TopHash),
		)
	}
	l.metrics.height.Set(float64(settings.TopHeight))
	return nil
}

// Network returns the network the ledger was configured for
func (l *Ledger) Network() network.Network {
	return l.config.Network
}

// Close releases the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecoverCommitTimestampConflict repairs a database whose stores disagree
// about the last commit. The payload archive commits before the relational
// store, so a torn pair can only leave orphaned payloads behind: payloads
// whose transaction never got a mapping row. Dropping those and committing
// re-stamps both stores with a shared timestamp.
func (l *Ledger) RecoverCommitTimestampConflict() error {
	l.Lock()
	defer l.Unlock()
	var orphans [][]byte
	iter := l.db.Payloads()
	defer iter.Close()
	for {
		res, err := iter.Next()
		if err != nil {
			return fmt.Errorf("failed to scan payload archive: %w", err)
		}
		if res == nil {
			break
		}
		mapping, err := l.db.GetMappingByTxId(res.TxId, nil)
		if err != nil {
			return fmt.Errorf("failed to check payload mapping: %w", err)
		}
		if mapping == nil {
			orphans = append(orphans, res.TxId)
		}
	}
	txn := l.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		for _, txId := range orphans {
			if err := l.db.DeletePayload(txId, txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to prune orphaned payloads: %w", err)
	}
	l.config.Logger.Info(
		"recovered commit timestamp conflict",
		"component", "ledger",
		"orphaned_payloads", len(orphans),
	)
	return nil
}
