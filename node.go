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

package fennec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/fennec/database"
	"github.com/blinklabs-io/fennec/event"
	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/mempool"
	"github.com/blinklabs-io/fennec/producer"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledger        *ledger.Ledger
	mempool       *mempool.Mempool
	producer      *producer.BlockProducer
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := n.configPopulateNetwork(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

func (n *Node) Run() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	dbNeedsRecovery := false
	dbConfig := &database.Config{
		DataDir:        n.config.dataDir,
		Logger:         n.config.logger,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		PromRegistry:   n.config.promRegistry,
	}
	db, err := database.New(dbConfig)
	if db == nil {
		n.config.logger.Error(
			"failed to create database",
			"error",
			"empty database returned",
		)
		return errors.New("empty database returned")
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error",
			err,
		)
		dbNeedsRecovery = true
	}
	// Determine the chain position. An existing database resumes from its
	// stored checkpoint; the configured start position only seeds a fresh one
	topHeight := n.config.startHeight
	topHash := n.config.startHash
	settings, err := database.GetSettings(n.db)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if settings != nil {
		topHeight = settings.TopHeight
		topHash = settings.TopHash
	}
	// Load ledger
	lg, err := ledger.NewLedger(
		ledger.LedgerConfig{
			Logger:       n.config.logger,
			Database:     n.db,
			EventBus:     n.eventBus,
			PromRegistry: n.config.promRegistry,
			Network:      n.config.network,
			TopHeight:    topHeight,
			TopHash:      topHash,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	n.ledger = lg
	// Run DB recovery if needed
	if dbNeedsRecovery {
		if err := n.ledger.RecoverCommitTimestampConflict(); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	// Initialize mempool
	n.mempool = mempool.NewMempool(mempool.MempoolConfig{
		MempoolCapacity: n.config.mempoolCapacity,
		Logger:          n.config.logger,
		EventBus:        n.eventBus,
		PromRegistry:    n.config.promRegistry,
		Validator:       n.ledger,
	},
	)
	// Start the local block producer in dev mode
	if n.config.isDevMode() {
		prod, err := producer.NewBlockProducer(
			producer.BlockProducerConfig{
				Logger:       n.config.logger,
				Ledger:       n.ledger,
				Mempool:      n.mempool,
				PromRegistry: n.config.promRegistry,
				Interval:     n.config.network.BlockInterval,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create block producer: %w", err)
		}
		n.producer = prod
		if err := n.producer.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start block producer: %w", err)
		}
	}

	// Wait for shutdown signal
	<-n.done
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.producer != nil {
		n.producer.Stop()
	}

	// Phase 2: Drain the registration pool
	n.config.logger.Debug("shutdown phase 2: draining mempool")

	if n.mempool != nil {
		if stopErr := n.mempool.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("mempool shutdown: %w", stopErr))
		}
	}

	// Phase 3: Flush state and close database
	n.config.logger.Debug("shutdown phase 3: flushing state")

	if n.ledger != nil {
		if closeErr := n.ledger.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("ledger close: %w", closeErr),
			)
		}
	} else if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}

// Ledger returns the node's ledger instance
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Mempool returns the node's registration mempool
func (n *Node) Mempool() *mempool.Mempool {
	return n.mempool
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}
