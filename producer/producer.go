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

// Package producer drives a development chain. On a fixed interval it
// stamps the pending registrations from the mempool into a synthetic
// block and ingests it into the ledger. Blocks are produced even when
// the pool is empty so heights, and with them expiry, advance the same
// way they do on a real chain.
package producer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/fennec/ledger"
	"github.com/blinklabs-io/fennec/mempool"
	"github.com/blinklabs-io/fennec/names"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"
)

type BlockProducerConfig struct {
	Logger       *slog.Logger
	Ledger       *ledger.Ledger
	Mempool      *mempool.Mempool
	PromRegistry prometheus.Registerer
	Interval     time.Duration
}

type BlockProducer struct {
	config  BlockProducerConfig
	logger  *slog.Logger
	metrics struct {
		blocksProduced        prometheus.Counter
		registrationsIncluded prometheus.Counter
		produceErrors         prometheus.Counter
	}
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewBlockProducer(cfg BlockProducerConfig) (*BlockProducer, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("no ledger provided")
	}
	if cfg.Mempool == nil {
		return nil, errors.New("no mempool provided")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	p := &BlockProducer{
		config: cfg,
		logger: cfg.Logger,
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	p.metrics.blocksProduced = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "producer_blocks_produced_total",
			Help: "total blocks produced",
		},
	)
	p.metrics.registrationsIncluded = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "producer_registrations_included_total",
			Help: "total registrations included in produced blocks",
		},
	)
	p.metrics.produceErrors = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "producer_errors_total",
			Help: "total block production failures",
		},
	)
	return p, nil
}

// Start begins block production. The provided context controls the
// producer's lifecycle.
func (p *BlockProducer) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("producer already running")
	}
	p.running = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info(
		"block producer started",
		"component", "producer",
		"interval", p.config.Interval.String(),
	)
	go p.runLoop(ctx)
	return nil
}

// Stop stops block production. It blocks until the production loop has
// exited.
func (p *BlockProducer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("block producer stopped", "component", "producer")
}

// IsRunning returns true if the producer is currently running.
func (p *BlockProducer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *BlockProducer) runLoop(ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.produceBlock(); err != nil {
				p.metrics.produceErrors.Inc()
				p.logger.Error(
					"block production failed",
					"component", "producer",
					"error", err,
				)
			}
		}
	}
}

// produceBlock builds the next block from the current pool snapshot and
// ingests it. Included registrations leave the pool whether the ledger
// applied or rejected them; a rejected payload will not become valid by
// waiting for another block.
func (p *BlockProducer) produceBlock() error {
	settings, err := p.config.Ledger.Settings()
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	pending := p.config.Mempool.Registrations()
	txs := make([]ledger.BlockTx, 0, len(pending))
	for _, entry := range pending {
		txs = append(txs, ledger.BlockTx{
			Registration: entry.Registration,
			TxID:         entry.TxID,
		})
	}
	height := settings.TopHeight + 1
	point := ledger.Point{
		Height: height,
		Hash:   blockHash(settings.TopHash, height, txs).Bytes(),
	}
	result, err := p.config.Ledger.IngestBlock(point, txs)
	if err != nil {
		return fmt.Errorf("failed to ingest block %d: %w", height, err)
	}
	for _, entry := range pending {
		p.config.Mempool.RemoveRegistration(entry.Hash)
	}
	p.metrics.blocksProduced.Inc()
	p.metrics.registrationsIncluded.Add(float64(result.Accepted))
	if len(txs) > 0 {
		p.logger.Debug(
			"produced block",
			"component", "producer",
			"height", height,
			"accepted", result.Accepted,
			"rejected", len(result.Rejected),
		)
	}
	return nil
}

// blockHash derives a deterministic hash for a produced block from the
// previous block hash, the height, and the included transaction ids.
func blockHash(prevHash []byte, height uint64, txs []ledger.BlockTx) names.Hash {
	data := make([]byte, 0, len(prevHash)+8+len(txs)*names.HashSize)
	data = append(data, prevHash...)
	data = binary.BigEndian.AppendUint64(data, height)
	for _, tx := range txs {
		data = append(data, tx.TxID.Bytes()...)
	}
	return names.Hash(blake2b.Sum256(data))
}
